// Package ingest drives CrawledPage records into a pagedb.PageDB through a
// concurrent worker pool, pacing requests per source host.
package ingest

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer limits how often pages from the same host are ingested, so a
// bursty source file doesn't starve the store's single writer lock.
type Pacer struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
}

// NewPacer creates a Pacer with defaultDelay between pages for any host
// that hasn't been seen before.
func NewPacer(defaultDelay time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		delay:    defaultDelay,
	}
}

// Wait blocks until a page for the given URL's host may proceed.
func (p *Pacer) Wait(ctx context.Context, pageURL string) error {
	if p.delay <= 0 {
		return nil
	}

	host := hostOf(pageURL)
	limiter := p.getLimiter(host)
	return limiter.Wait(ctx)
}

func hostOf(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func (p *Pacer) getLimiter(host string) *rate.Limiter {
	p.mu.RLock()
	limiter, ok := p.limiters[host]
	p.mu.RUnlock()
	if ok {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[host]; ok {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(p.delay), 1)
	p.limiters[host] = limiter
	return limiter
}
