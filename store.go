package pagedb

import (
	bolt "go.etcd.io/bbolt"
)

// Link is one outbound link observed on a crawled page. Score is consumed
// by schedulers upstream of this store and is never persisted here — the
// store records only the adjacency, not per-edge scores.
type Link struct {
	URL   string
	Score float64
}

// CrawledPage is the ephemeral input to Add: a fetched page, its crawl
// time and score, an optional content hash, and its outbound links in
// page order.
type CrawledPage struct {
	URL     string
	Time    float64 // seconds since epoch
	Score   float32
	Hash    []byte // optional content hash; may be empty
	Links   []Link
}

// AddResult is one (hash, PageInfo) snapshot produced by Add: either the
// source page or one of its link targets.
type AddResult struct {
	Hash uint64
	Info PageInfo
}

// Config configures Open.
type Config struct {
	// InitialMmapSize is the store's starting mmap region. Defaults to
	// 100 MiB if zero.
	InitialMmapSize int
	// MaxMmapSize caps doubling growth. Defaults to 32 GiB if zero.
	MaxMmapSize int
	// Hasher computes the 64-bit digest Add and the lookups key on.
	// Defaults to DefaultHasher (xxhash64) if nil.
	Hasher Hasher
}

// PageDB is the page store and link graph engine: the five-index schema
// over an embedded mmap store, the add pipeline, and lookup operations.
// A *PageDB is safe for concurrent use by many goroutines.
type PageDB struct {
	mgr    *manager
	hasher Hasher
	errs   errSlot
}

// Open opens (creating if necessary) the store rooted at dir.
func Open(dir string, cfg Config) (*PageDB, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	mgr, err := openManager(dir, cfg.InitialMmapSize, cfg.MaxMmapSize)
	if err != nil {
		return nil, err
	}

	return &PageDB{mgr: mgr, hasher: hasher}, nil
}

// Close releases the store. Every outstanding LinkStream must already be
// dropped; a closed store invalidates any cursor or stream obtained from
// it.
func (db *PageDB) Close() error {
	if err := db.mgr.close(); err != nil {
		e := NewError(Internal, err)
		db.errs.set(e)
		return e
	}
	return nil
}

// LastError returns the most recently recorded error from the
// convenience error slot. Prefer the per-call error return; this is
// for single-threaded, C-style callers only.
func (db *PageDB) LastError() *Error {
	return db.errs.Last()
}

func (db *PageDB) fail(code Code, cause error) *Error {
	e := NewError(code, cause)
	db.errs.set(e)
	return e
}

// Add admits a fetched page and its outbound links: it deduplicates
// URLs, issues dense indices for any URL observed for the first time,
// updates the source page's observational statistics, and overwrites its
// edge list. The whole operation is one write transaction: either every
// effect is visible, or none is.
//
// On a MapFull-class failure the underlying store is grown and this call
// is replayed automatically and transparently; Add itself never returns
// a partial result.
func (db *PageDB) Add(page CrawledPage) ([]AddResult, error) {
	var results []AddResult

	err := db.mgr.update(func(tx *bolt.Tx) error {
		results = nil // reset on each replay attempt

		srcHash := db.hasher([]byte(page.URL))
		srcIdx, srcInfo, err := upsertCrawledPage(tx, srcHash, page)
		if err != nil {
			return err
		}
		results = append(results, AddResult{Hash: srcHash, Info: *srcInfo})

		targets := make([]uint64, 0, len(page.Links))
		for _, link := range page.Links {
			h := db.hasher([]byte(link.URL))
			idx, info, err := ensureLinkTarget(tx, h, link.URL)
			if err != nil {
				return err
			}
			targets = append(targets, idx)
			results = append(results, AddResult{Hash: h, Info: *info})
		}

		linksBucket := tx.Bucket(bucketLinks)
		return linksBucket.Put(encodeU64Key(srcIdx), encodeEdgeList(targets))
	})
	if err != nil {
		if e, ok := err.(*Error); ok {
			db.errs.set(e)
			return nil, e
		}
		e := db.fail(Internal, err)
		return nil, e
	}

	return results, nil
}

// upsertCrawledPage handles the source URL of an Add: allocate on first
// sight, else update its observational statistics in place.
func upsertCrawledPage(tx *bolt.Tx, hash uint64, page CrawledPage) (uint64, *PageInfo, error) {
	idx, existed, err := lookupOrAllocIndex(tx, hash)
	if err != nil {
		return 0, nil, err
	}

	info2 := tx.Bucket(bucketHash2Info)

	if !existed {
		info := &PageInfo{
			URL:         page.URL,
			FirstCrawl:  page.Time,
			LastCrawl:   page.Time,
			NCrawls:     1,
			NChanges:    0,
			Score:       page.Score,
			ContentHash: page.Hash,
		}
		buf, err := encodePageInfo(info)
		if err != nil {
			return 0, nil, err
		}
		if err := info2.Put(encodeU64Key(hash), buf); err != nil {
			return 0, nil, err
		}
		return idx, info, nil
	}

	raw := info2.Get(encodeU64Key(hash))
	if raw == nil {
		return 0, nil, Errorf(Internal, "hash2idx has index for hash %x but hash2info has no record", hash)
	}
	existing, err := decodePageInfo(raw)
	if err != nil {
		return 0, nil, err
	}

	if existing.NCrawls == 0 {
		// first crawl of a page previously seen only as a link target
		existing.FirstCrawl = page.Time
	}
	if page.Time > existing.LastCrawl {
		existing.LastCrawl = page.Time
	}
	existing.NCrawls++
	if len(existing.ContentHash) > 0 && !bytesEqual(existing.ContentHash, page.Hash) {
		existing.NChanges++
	}
	existing.ContentHash = page.Hash
	existing.Score = page.Score

	buf, err := encodePageInfo(existing)
	if err != nil {
		return 0, nil, err
	}
	if err := info2.Put(encodeU64Key(hash), buf); err != nil {
		return 0, nil, err
	}
	return idx, existing, nil
}

// ensureLinkTarget handles one link target of an Add: allocate and write
// a link-only PageInfo on first sight, otherwise return the existing
// snapshot unmodified.
func ensureLinkTarget(tx *bolt.Tx, hash uint64, url string) (uint64, *PageInfo, error) {
	idx, existed, err := lookupOrAllocIndex(tx, hash)
	if err != nil {
		return 0, nil, err
	}

	info2 := tx.Bucket(bucketHash2Info)

	if !existed {
		info := &PageInfo{URL: url}
		buf, err := encodePageInfo(info)
		if err != nil {
			return 0, nil, err
		}
		if err := info2.Put(encodeU64Key(hash), buf); err != nil {
			return 0, nil, err
		}
		return idx, info, nil
	}

	raw := info2.Get(encodeU64Key(hash))
	if raw == nil {
		return 0, nil, Errorf(Internal, "hash2idx has index for hash %x but hash2info has no record", hash)
	}
	existing, err := decodePageInfo(raw)
	if err != nil {
		return 0, nil, err
	}
	return idx, existing, nil
}

// lookupOrAllocIndex returns the dense index for hash, allocating and
// persisting a new one from the info bucket's n_pages counter if this is
// the first time hash has been observed. The allocation is purely a
// function of already-committed store state plus the call, so it is safe
// to replay on a MapFull grow-and-retry.
func lookupOrAllocIndex(tx *bolt.Tx, hash uint64) (idx uint64, existed bool, err error) {
	idxBucket := tx.Bucket(bucketHash2Idx)
	key := encodeU64Key(hash)

	if raw := idxBucket.Get(key); raw != nil {
		v, err := decodeU64Value(raw)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	}

	infoBucket := tx.Bucket(bucketInfo)
	current := uint64(0)
	if raw := infoBucket.Get(keyNPages); raw != nil {
		current, err = decodeU64Value(raw)
		if err != nil {
			return 0, false, err
		}
	}

	if err := infoBucket.Put(keyNPages, encodeU64Value(current+1)); err != nil {
		return 0, false, err
	}
	if err := idxBucket.Put(key, encodeU64Value(current)); err != nil {
		return 0, false, err
	}
	return current, false, nil
}

// NPages returns the number of distinct URLs the store has assigned an
// index to (the store's n_pages counter).
func (db *PageDB) NPages() (uint64, error) {
	var n uint64
	err := db.mgr.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketInfo).Get(keyNPages)
		if raw == nil {
			return nil
		}
		v, err := decodeU64Value(raw)
		if err != nil {
			return err
		}
		n = v
		return nil
	})
	if err != nil {
		e := db.fail(Internal, err)
		return 0, e
	}
	return n, nil
}

// GetIdx returns the dense index assigned to url, or (0, false, nil) if
// url has never been observed. Absence is not an error.
func (db *PageDB) GetIdx(url string) (uint64, bool, error) {
	return db.getIdxByHash(db.hasher([]byte(url)))
}

func (db *PageDB) getIdxByHash(hash uint64) (uint64, bool, error) {
	var idx uint64
	var found bool
	err := db.mgr.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHash2Idx).Get(encodeU64Key(hash))
		if raw == nil {
			return nil
		}
		v, err := decodeU64Value(raw)
		if err != nil {
			return err
		}
		idx, found = v, true
		return nil
	})
	if err != nil {
		e := db.fail(Internal, err)
		return 0, false, e
	}
	return idx, found, nil
}

// GetInfoFromURL hashes url and returns its PageInfo, or (nil, nil) if
// url has never been observed. Because hash2info records the URL that
// first claimed its hash, a lookup miss caused by a hash collision is
// distinguishable from a genuine absence: GetInfoFromURL reports it as
// an Internal error rather than silently returning the wrong record.
func (db *PageDB) GetInfoFromURL(url string) (*PageInfo, error) {
	info, err := db.GetInfoFromHash(db.hasher([]byte(url)))
	if err != nil || info == nil {
		return info, err
	}
	if info.URL != url {
		e := Errorf(Internal, "hash collision: url %q and %q share a hash", url, info.URL)
		db.errs.set(e)
		return nil, e
	}
	return info, nil
}

// GetInfoFromHash returns the decoded PageInfo for hash, or (nil, nil) if
// absent. Only I/O and decode failures are reported as errors.
func (db *PageDB) GetInfoFromHash(hash uint64) (*PageInfo, error) {
	var info *PageInfo
	err := db.mgr.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHash2Info).Get(encodeU64Key(hash))
		if raw == nil {
			return nil
		}
		decoded, err := decodePageInfo(raw)
		if err != nil {
			return err
		}
		info = decoded
		return nil
	})
	if err != nil {
		e := db.fail(Internal, err)
		return nil, e
	}
	return info, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
