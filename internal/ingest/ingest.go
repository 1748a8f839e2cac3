package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fetchgraph/pagedb"
)

// Stats reports ingestion progress, updated by the workers as they go and
// readable at any time via Driver.Stats.
type Stats struct {
	PagesIngested int
	ErrorCount    int
	StartTime     time.Time
	Duration      time.Duration
}

// Driver reads CrawledPage records from a Source and applies them to a
// PageDB from a pool of concurrent workers, pacing requests per host.
type Driver struct {
	DB          *pagedb.PageDB
	Source      Source
	Concurrency int
	Limit       int // 0 = unlimited
	Pacer       *Pacer
	Logger      *slog.Logger

	statsMu sync.RWMutex
	stats   Stats

	itemsMu sync.Mutex // serializes reads from Source
}

// NewDriver builds a Driver with sane defaults for Concurrency and Logger
// if left zero/nil.
func NewDriver(db *pagedb.PageDB, source Source) *Driver {
	return &Driver{
		DB:          db,
		Source:      source,
		Concurrency: 2,
		Pacer:       NewPacer(0),
		Logger:      slog.Default(),
	}
}

// Run starts Concurrency workers pulling pages from Source and applying
// them to DB until the source is exhausted, Limit is reached, or ctx is
// cancelled. It blocks until all workers have stopped.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.statsMu.Lock()
	d.stats = Stats{StartTime: time.Now()}
	d.statsMu.Unlock()

	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := d.worker(runCtx, id); err != nil && !errors.Is(err, context.Canceled) {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				cancel()
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}

	return d.Stats(), firstErr
}

// worker pulls pages one at a time from Source (serialized by itemsMu so
// a single-reader Source stays safe under concurrent workers), paces by
// host, and applies each page to DB.
func (d *Driver) worker(ctx context.Context, id int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.reachedLimit() {
			return nil
		}

		page, err := d.nextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			d.incrementErrors()
			d.log().Warn("ingest: failed to read page", "worker", id, "error", err)
			continue
		}

		if err := d.Pacer.Wait(ctx, page.URL); err != nil {
			return err
		}

		if _, err := d.DB.Add(page); err != nil {
			d.incrementErrors()
			d.log().Warn("ingest: failed to add page", "worker", id, "url", page.URL, "error", err)
			continue
		}
		d.incrementIngested()
	}
}

func (d *Driver) nextPage() (pagedb.CrawledPage, error) {
	d.itemsMu.Lock()
	defer d.itemsMu.Unlock()
	return d.Source.Next()
}

func (d *Driver) reachedLimit() bool {
	if d.Limit <= 0 {
		return false
	}
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats.PagesIngested >= d.Limit
}

func (d *Driver) incrementIngested() {
	d.statsMu.Lock()
	d.stats.PagesIngested++
	d.statsMu.Unlock()
}

func (d *Driver) incrementErrors() {
	d.statsMu.Lock()
	d.stats.ErrorCount++
	d.statsMu.Unlock()
}

// Stats returns a snapshot of the current ingestion progress.
func (d *Driver) Stats() Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	stats := d.stats
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

func (d *Driver) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
