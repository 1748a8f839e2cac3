package graph

import (
	"fmt"
	"path/filepath"

	"github.com/fetchgraph/pagedb"
)

// Driver is the graph-kernel driver glue: it opens a fresh link stream,
// hands it to a kernel along with n_pages, and persists the resulting
// vector(s) to external mmap-backed dense files under Dir. The kernel is
// otherwise opaque to the store.
type Driver struct {
	Dir      string
	HITS     HITSKernel
	PageRank PageRankKernel

	// ReadAhead sizes the link stream's prefetch buffer. A kernel like
	// DefaultHITS re-scans the whole edge set many times; buffering edges
	// ahead of the consumer overlaps bbolt's cursor I/O with the kernel's
	// per-edge work. 0 disables prefetching and reads the stream directly.
	ReadAhead int
}

// NewDriver returns a Driver writing score files under dir, using the
// default reference kernels.
func NewDriver(dir string) *Driver {
	return &Driver{Dir: dir, HITS: DefaultHITS{}, PageRank: DefaultPageRank{}}
}

// UpdateHITS runs the HITS kernel over db's current link graph and
// writes hits_hub.vec and hits_auth.vec under Dir.
func (d *Driver) UpdateHITS(db *pagedb.PageDB) error {
	n, err := db.NPages()
	if err != nil {
		return err
	}

	stream, err := pagedb.OpenLinkStream(db)
	if err != nil {
		return err
	}
	defer stream.Close()

	hub, authority, err := d.HITS.Run(d.wrap(stream), int(n))
	if err != nil {
		return fmt.Errorf("run hits kernel: %w", err)
	}

	if err := writeVector(filepath.Join(d.Dir, "hits_hub.vec"), hub); err != nil {
		return err
	}
	return writeVector(filepath.Join(d.Dir, "hits_auth.vec"), authority)
}

// UpdatePageRank runs the PageRank kernel over db's current link graph
// and writes pagerank.vec under Dir.
func (d *Driver) UpdatePageRank(db *pagedb.PageDB, damping float64) error {
	n, err := db.NPages()
	if err != nil {
		return err
	}

	stream, err := pagedb.OpenLinkStream(db)
	if err != nil {
		return err
	}
	defer stream.Close()

	rank, err := d.PageRank.Run(d.wrap(stream), int(n), damping)
	if err != nil {
		return fmt.Errorf("run pagerank kernel: %w", err)
	}

	return writeVector(filepath.Join(d.Dir, "pagerank.vec"), rank)
}

// wrap returns stream itself when prefetching is disabled, or a
// PrefetchStream sized to d.ReadAhead otherwise.
func (d *Driver) wrap(stream *pagedb.LinkStream) pagedb.Stream {
	if d.ReadAhead <= 0 {
		return stream
	}
	return pagedb.NewPrefetchStream(stream, d.ReadAhead)
}

func writeVector(path string, v []float32) error {
	df, err := CreateDenseFile(path, len(v))
	if err != nil {
		return err
	}
	for i, x := range v {
		df.Set(i, x)
	}
	return df.Close()
}
