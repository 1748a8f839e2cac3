package pagedb

import bolt "go.etcd.io/bbolt"

// State is a LinkStream's current position: Init before the first call
// to Next, Next after a call that produced an edge, End once the
// database is exhausted, and Error once a decode or I/O failure has
// occurred (all subsequent calls also return Error).
type State int

const (
	StateInit State = iota
	StateNext
	StateEnd
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateNext:
		return "next"
	case StateEnd:
		return "end"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Edge is one (from_index, to_index) pair in the link graph.
type Edge struct {
	From uint64
	To   uint64
}

// LinkStream is a restartable, lazy sequence over the edge relation
// stored in the links bucket. It holds one read transaction and one
// cursor; the transaction is a snapshot fixed at creation time, so
// concurrent writers never affect an in-flight or reset stream. A
// LinkStream must be closed when done; a closed PageDB invalidates any
// stream still outstanding.
//
// Ordering: edges are emitted in increasing From order, and within a
// From, in the order they were stored (page order at the most recent Add
// of that source).
type LinkStream struct {
	tx     *bolt.Tx
	cursor *bolt.Cursor
	state  State
	err    error

	curFrom    uint64
	curTargets []uint64
	pos        int

	pendingKey, pendingVal []byte
	cursorDone             bool
}

// OpenLinkStream opens a new link stream over db's current snapshot.
func OpenLinkStream(db *PageDB) (*LinkStream, error) {
	tx, err := db.mgr.beginRead()
	if err != nil {
		return nil, err
	}

	s := &LinkStream{
		tx:     tx,
		cursor: tx.Bucket(bucketLinks).Cursor(),
	}
	s.Reset()
	return s, nil
}

// Reset repositions the stream before the first edge. It may be called
// repeatedly on the same stream, including mid-iteration; a subsequent
// full iteration yields identical output.
func (s *LinkStream) Reset() State {
	s.state = StateInit
	s.err = nil
	s.curTargets = nil
	s.pos = 0

	k, v := s.cursor.First()
	s.pendingKey, s.pendingVal = k, v
	s.cursorDone = k == nil

	return s.state
}

// Next advances the stream by one edge. When the current source's
// target buffer is exhausted it advances to the next source key and
// refills. It returns StateEnd once the links bucket is exhausted, or
// StateError (sticky) on a decode failure.
func (s *LinkStream) Next() (Edge, State) {
	if s.state == StateError {
		return Edge{}, StateError
	}

	for {
		if s.pos < len(s.curTargets) {
			edge := Edge{From: s.curFrom, To: s.curTargets[s.pos]}
			s.pos++
			s.state = StateNext
			return edge, StateNext
		}

		if s.cursorDone {
			s.state = StateEnd
			return Edge{}, StateEnd
		}

		from := decodeU64Key(s.pendingKey)
		targets, err := decodeEdgeList(s.pendingVal)
		if err != nil {
			s.state = StateError
			s.err = err
			return Edge{}, StateError
		}

		s.curFrom = from
		s.curTargets = targets
		s.pos = 0

		k, v := s.cursor.Next()
		s.pendingKey, s.pendingVal = k, v
		s.cursorDone = k == nil
		// loop: handles a present-but-empty edge list by moving straight
		// on to the next source row instead of yielding a phantom edge.
	}
}

// State returns the stream's current state without advancing it.
func (s *LinkStream) State() State { return s.state }

// Err returns the error that produced StateError, if any.
func (s *LinkStream) Err() error { return s.err }

// Close releases the stream's read transaction and cursor.
func (s *LinkStream) Close() error {
	return s.tx.Rollback()
}
