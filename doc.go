// Package pagedb is the crawl page store and link graph engine.
//
// It durably records, for every URL a crawler has fetched or merely
// observed as a link target, a compact PageInfo record; assigns each URL a
// dense integer index; and persists the outbound links of a fetched page
// as a packed adjacency list that a LinkStream can replay for graph
// analysis (HITS, PageRank).
//
// The store is a thin schema layered on go.etcd.io/bbolt, an embedded
// memory-mapped single-writer/many-reader transactional store. Callers
// never see a *bolt.Tx; the only entry points are Open, Add, the lookup
// functions, and OpenLinkStream.
package pagedb
