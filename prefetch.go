package pagedb

import "sync"

// PrefetchStream wraps a Stream with a background goroutine that reads
// ahead into a buffered channel, overlapping the wrapped stream's I/O
// with whatever the consumer does between calls to Next. It implements
// Stream itself, so a graph kernel can use one in place of a *LinkStream
// without any change to its scan loop.
type PrefetchStream struct {
	inner Stream
	n     int

	mu        sync.Mutex
	items     chan prefetchItem
	done      chan struct{}
	lastState State
}

type prefetchItem struct {
	edge  Edge
	state State
}

var _ Stream = (*PrefetchStream)(nil)

// NewPrefetchStream wraps inner, buffering up to n edges ahead of the
// consumer. n <= 0 is treated as 1 (no real read-ahead, but still off
// the inner stream's goroutine).
func NewPrefetchStream(inner Stream, n int) *PrefetchStream {
	if n <= 0 {
		n = 1
	}
	s := &PrefetchStream{inner: inner, n: n}
	s.Reset()
	return s
}

// Reset stops the current read-ahead goroutine, resets the wrapped
// stream, and starts a fresh one. Safe to call mid-iteration, matching
// Stream's general contract.
func (s *PrefetchStream) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		close(s.done)
	}
	state := s.inner.Reset()
	s.lastState = StateInit
	s.items = make(chan prefetchItem, s.n)
	s.done = make(chan struct{})
	go s.run(s.items, s.done)
	return state
}

func (s *PrefetchStream) run(items chan<- prefetchItem, done <-chan struct{}) {
	for {
		e, state := s.inner.Next()
		select {
		case items <- prefetchItem{edge: e, state: state}:
		case <-done:
			return
		}
		if state != StateNext {
			return
		}
	}
}

// Next implements Stream. Once the wrapped stream reaches StateEnd or
// StateError, Next keeps returning that terminal state without reading
// the channel again.
func (s *PrefetchStream) Next() (Edge, State) {
	s.mu.Lock()
	items, lastState := s.items, s.lastState
	s.mu.Unlock()

	if lastState == StateEnd || lastState == StateError {
		return Edge{}, lastState
	}

	item := <-items
	if item.state != StateNext {
		s.mu.Lock()
		s.lastState = item.state
		s.mu.Unlock()
	}
	return item.edge, item.state
}

// Close stops the read-ahead goroutine. It does not close the wrapped
// stream; callers that obtained inner from OpenLinkStream must still
// close it themselves.
func (s *PrefetchStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}
