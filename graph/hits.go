package graph

import (
	"math"

	"github.com/fetchgraph/pagedb"
)

// DefaultHITS is a small, real (not stubbed) power-iteration HITS kernel:
// hub and authority scores are refined by repeatedly re-streaming the
// edge set and normalizing. It exists so update_hits is an operation a
// caller can actually run; a production kernel is free to implement
// HITSKernel differently and is otherwise opaque to the store.
type DefaultHITS struct {
	// Iterations is the number of hub/authority refinement rounds.
	// Defaults to 20 if zero.
	Iterations int
}

// Run implements HITSKernel.
func (k DefaultHITS) Run(stream pagedb.Stream, nPages int) (hub, authority []float32, err error) {
	iterations := k.Iterations
	if iterations <= 0 {
		iterations = 20
	}

	hub = make([]float32, nPages)
	authority = make([]float32, nPages)
	for i := range hub {
		hub[i] = 1
		authority[i] = 1
	}

	for iter := 0; iter < iterations; iter++ {
		newAuth := make([]float32, nPages)
		if err := scanEdges(stream, func(e pagedb.Edge) error {
			if int(e.To) < nPages {
				newAuth[e.To] += hub[e.From]
			}
			return nil
		}); err != nil {
			return nil, nil, err
		}
		normalizeL2(newAuth)

		newHub := make([]float32, nPages)
		if err := scanEdges(stream, func(e pagedb.Edge) error {
			if int(e.From) < nPages {
				newHub[e.From] += newAuth[e.To]
			}
			return nil
		}); err != nil {
			return nil, nil, err
		}
		normalizeL2(newHub)

		hub, authority = newHub, newAuth
	}

	return hub, authority, nil
}

// scanEdges resets stream and calls fn for every edge in one full pass.
func scanEdges(stream pagedb.Stream, fn func(pagedb.Edge) error) error {
	stream.Reset()
	for {
		e, state := stream.Next()
		switch state {
		case pagedb.StateNext:
			if err := fn(e); err != nil {
				return err
			}
		case pagedb.StateEnd:
			return nil
		case pagedb.StateError:
			return pagedb.Errorf(pagedb.Internal, "link stream error during graph kernel scan")
		}
	}
}

func normalizeL2(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
