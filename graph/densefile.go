// Package graph provides the graph-kernel driver glue: it invokes a
// pluggable HITS or PageRank kernel over a pagedb link stream and
// persists the resulting score vector to an external mmap-backed dense
// array file, one float32 slot per page index.
package graph

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// DenseFile is a memory-mapped []float32, slot i holding the score for
// page index i. This is the external dense-array file a graph driver
// writes kernel output to, so downstream tools can mmap it directly
// instead of deserializing a bulk vector.
type DenseFile struct {
	file *os.File
	m    mmap.MMap
	n    int
}

const floatSize = 4

// CreateDenseFile creates (or truncates) path to hold n float32 slots,
// zero-initialized, and maps it read-write.
func CreateDenseFile(path string, n int) (*DenseFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create dense file: %w", err)
	}

	size := int64(n) * floatSize
	if size == 0 {
		size = floatSize // mmap requires a non-empty file
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate dense file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap dense file: %w", err)
	}

	return &DenseFile{file: f, m: m, n: n}, nil
}

// OpenDenseFile maps an existing dense file read-only.
func OpenDenseFile(path string) (*DenseFile, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open dense file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat dense file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap dense file: %w", err)
	}

	return &DenseFile{file: f, m: m, n: int(info.Size() / floatSize)}, nil
}

// Len returns the number of float32 slots.
func (d *DenseFile) Len() int { return d.n }

// Set writes the score for page index i.
func (d *DenseFile) Set(i int, v float32) {
	putFloat32(d.m[i*floatSize:i*floatSize+floatSize], v)
}

// Get reads the score for page index i.
func (d *DenseFile) Get(i int) float32 {
	return getFloat32(d.m[i*floatSize : i*floatSize+floatSize])
}

// Close flushes and unmaps the file.
func (d *DenseFile) Close() error {
	if err := d.m.Flush(); err != nil {
		_ = d.m.Unmap()
		_ = d.file.Close()
		return fmt.Errorf("flush dense file: %w", err)
	}
	if err := d.m.Unmap(); err != nil {
		_ = d.file.Close()
		return fmt.Errorf("unmap dense file: %w", err)
	}
	return d.file.Close()
}
