package pagedb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// defaultInitialMmapSize is the store's starting mmap region.
	defaultInitialMmapSize = 100 << 20 // 100 MiB
	// defaultMaxMmapSize is the implementation cap on doubling growth.
	defaultMaxMmapSize = 32 << 30 // 32 GiB
)

// manager arbitrates read-write transactions against the embedded mmap
// store, doubling its mmap region (up to a cap) and reopening whenever
// the store reports it cannot grow the current mapping. bbolt normally
// remaps transparently inside Update; the retry path here exists for the
// narrow case where that remap itself fails (resource exhaustion, a
// read-only filesystem growing unexpectedly, ...).
type manager struct {
	dir             string
	initialMmapSize int
	maxMmapSize     int

	mu sync.Mutex // serializes grow-and-reopen against concurrent Update/View
	db *bolt.DB
}

func openManager(dir string, initialMmapSize, maxMmapSize int) (*manager, error) {
	if initialMmapSize <= 0 {
		initialMmapSize = defaultInitialMmapSize
	}
	if maxMmapSize <= 0 {
		maxMmapSize = defaultMaxMmapSize
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, NewError(InvalidPath, err)
	}

	m := &manager{dir: dir, initialMmapSize: initialMmapSize, maxMmapSize: maxMmapSize}
	if err := m.open(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *manager) dataPath() string {
	return filepath.Join(m.dir, "data")
}

func (m *manager) open() error {
	db, err := bolt.Open(m.dataPath(), 0o640, &bolt.Options{
		Timeout:         2 * time.Second,
		InitialMmapSize: m.initialMmapSize,
	})
	if err != nil {
		return NewError(InvalidPath, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return NewError(Internal, err)
	}

	m.db = db
	return nil
}

func (m *manager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// writeFunc is the idempotent closure a caller expresses its work as, so
// that the transaction can be replayed against a freshly grown mapping
// without duplicating application-level state.
type writeFunc func(tx *bolt.Tx) error

// update runs fn inside a write transaction, growing and reopening the
// store on a mmap-resize failure and replaying fn exactly once per
// growth step, up to the configured cap.
func (m *manager) update(fn writeFunc) error {
	for {
		m.mu.Lock()
		db := m.db
		m.mu.Unlock()
		if db == nil {
			return NewError(Internal, errors.New("store is closed"))
		}

		err := db.Update(fn)
		if err == nil {
			return nil
		}
		if !isMapFull(err) {
			if e, ok := err.(*Error); ok {
				return e
			}
			return NewError(Internal, err)
		}

		if grewErr := m.grow(); grewErr != nil {
			return grewErr
		}
		// loop and retry fn against the regrown store
	}
}

// view runs fn inside a read transaction.
func (m *manager) view(fn func(tx *bolt.Tx) error) error {
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()
	if db == nil {
		return NewError(Internal, errors.New("store is closed"))
	}
	if err := db.View(fn); err != nil {
		return NewError(Internal, err)
	}
	return nil
}

// beginRead opens a standalone read transaction, for long-lived readers
// such as a LinkStream. The caller must Rollback (bbolt's read-only
// transaction close) when done.
func (m *manager) beginRead() (*bolt.Tx, error) {
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()
	if db == nil {
		return nil, NewError(Internal, errors.New("store is closed"))
	}
	tx, err := db.Begin(false)
	if err != nil {
		return nil, NewError(Internal, err)
	}
	return tx, nil
}

// grow doubles the mmap size (capped) and reopens the environment. It is
// serialized with all transactions via mu, so a grow never races a
// concurrent read or write transaction.
func (m *manager) grow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.initialMmapSize * 2
	if next > m.maxMmapSize {
		if m.initialMmapSize >= m.maxMmapSize {
			return Errorf(Memory, "mmap size cap %d reached", m.maxMmapSize)
		}
		next = m.maxMmapSize
	}
	m.initialMmapSize = next

	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return NewError(Internal, err)
		}
	}

	db, err := bolt.Open(m.dataPath(), 0o640, &bolt.Options{
		Timeout:         2 * time.Second,
		InitialMmapSize: m.initialMmapSize,
	})
	if err != nil {
		return NewError(InvalidPath, err)
	}
	m.db = db
	return nil
}

// isMapFull reports whether err is the class of mmap-resize failure the
// grow-and-retry path exists to recover from.
func isMapFull(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "mmap") || strings.Contains(msg, "remap") ||
		errors.Is(err, bolt.ErrDatabaseNotOpen)
}
