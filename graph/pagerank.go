package graph

import "github.com/fetchgraph/pagedb"

// DefaultPageRank is a small power-iteration PageRank kernel with
// dangling-node mass redistribution. It re-streams the edge set once per
// iteration plus once up front to compute out-degrees.
type DefaultPageRank struct {
	// Iterations is the number of refinement rounds. Defaults to 30 if
	// zero.
	Iterations int
}

// Run implements PageRankKernel. damping is typically 0.85.
func (k DefaultPageRank) Run(stream pagedb.Stream, nPages int, damping float64) ([]float32, error) {
	if nPages == 0 {
		return nil, nil
	}

	iterations := k.Iterations
	if iterations <= 0 {
		iterations = 30
	}

	outDegree := make([]int, nPages)
	if err := scanEdges(stream, func(e pagedb.Edge) error {
		if int(e.From) < nPages {
			outDegree[e.From]++
		}
		return nil
	}); err != nil {
		return nil, err
	}

	rank := make([]float32, nPages)
	base := float32(1.0 / float64(nPages))
	for i := range rank {
		rank[i] = base
	}

	for iter := 0; iter < iterations; iter++ {
		next := make([]float32, nPages)

		var danglingMass float64
		for i, d := range outDegree {
			if d == 0 {
				danglingMass += float64(rank[i])
			}
		}

		if err := scanEdges(stream, func(e pagedb.Edge) error {
			from, to := int(e.From), int(e.To)
			if from < nPages && to < nPages && outDegree[from] > 0 {
				next[to] += rank[from] / float32(outDegree[from])
			}
			return nil
		}); err != nil {
			return nil, err
		}

		teleport := float32((1 - damping) / float64(nPages))
		danglingShare := float32(damping * danglingMass / float64(nPages))
		for i := range next {
			next[i] = teleport + danglingShare + float32(damping)*next[i]
		}

		rank = next
	}

	return rank, nil
}
