package graph

import "github.com/fetchgraph/pagedb"

// HITSKernel computes hub and authority scores over a link stream. Both
// returned slices are indexed by page index and have length nPages. The
// kernel may call stream.Reset() and re-scan as many times as its
// algorithm needs; the stream's snapshot does not change between resets.
type HITSKernel interface {
	Run(stream pagedb.Stream, nPages int) (hub, authority []float32, err error)
}

// PageRankKernel computes a single PageRank vector over a link stream,
// indexed by page index, length nPages.
type PageRankKernel interface {
	Run(stream pagedb.Stream, nPages int, damping float64) ([]float32, error)
}
