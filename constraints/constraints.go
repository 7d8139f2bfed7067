// Package constraints computes the neighbor relations that drive
// large-margin metric learning: target neighbors (the k nearest
// same-label points, on the raw dataset) and impostors (the k nearest
// different-label points, on the transformed dataset).
//
// The search is exact brute force. Datasets are column major: one
// column per point, aligned with the labels slice.
package constraints

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/core"
)

// Finder computes target-neighbor and impostor tables by exhaustive
// pairwise comparison.
type Finder struct {
	k      int         // number of neighbors per point
	metric core.Metric // pairwise distance used for ranking
}

// NewFinder creates a Finder that returns k neighbors per point,
// ranked by the given metric. A nil metric defaults to squared
// Euclidean distance.
func NewFinder(k int, metric core.Metric) (*Finder, error) {
	if k < 1 {
		return nil, fmt.Errorf("number of neighbors must be at least 1, got %d", k)
	}
	if metric == nil {
		metric = core.SquaredEuclidean{}
	}
	return &Finder{k: k, metric: metric}, nil
}

// K returns the number of neighbors the finder produces per point.
func (f *Finder) K() int {
	return f.k
}

// slot tracks one candidate neighbor during the ordered k-best scan.
type slot struct {
	index int
	dist  float64
	set   bool
}

// insert places cand into slots keeping them sorted by ascending
// distance. The slice length never changes; the worst entry falls off.
func insert(cand slot, slots []slot) {
	for i := range slots {
		if !slots[i].set || cand.dist < slots[i].dist {
			cand, slots[i] = slots[i], cand
		}
	}
}

// TargetNeighbors fills out with, per point, the indices of its k
// nearest points sharing the same label. out must be k x n where n is
// the number of dataset columns.
func (f *Finder) TargetNeighbors(out *core.IntMatrix, data *mat.Dense, labels []int) error {
	_, n := data.Dims()
	if err := f.check(out, nil, n, labels); err != nil {
		return err
	}

	log.Debug().Msgf("Computing %d target neighbors for %d points", f.k, n)

	slots := make([]slot, f.k)
	for i := 0; i < n; i++ {
		for s := range slots {
			slots[s] = slot{}
		}
		pi := data.ColView(i)
		for c := 0; c < n; c++ {
			if c == i || labels[c] != labels[i] {
				continue
			}
			d := f.metric.Evaluate(pi, data.ColView(c))
			insert(slot{index: c, dist: d, set: true}, slots)
		}
		for j := range slots {
			if !slots[j].set {
				return fmt.Errorf("point %d has fewer than %d same-label neighbors", i, f.k)
			}
			out.Set(j, i, slots[j].index)
		}
	}
	return nil
}

// Impostors fills outIdx with, per point, the indices of its k nearest
// points carrying a different label, evaluated on the given (already
// transformed) dataset. If outDist is non-nil it receives the matching
// distances. Both outputs must be k x n.
func (f *Finder) Impostors(outIdx *core.IntMatrix, outDist *mat.Dense, data *mat.Dense, labels []int) error {
	_, n := data.Dims()
	return f.ImpostorsRange(outIdx, outDist, data, labels, 0, n)
}

// ImpostorsRange behaves like Impostors but restricts the query to
// points in [begin, begin+batchSize). Output columns outside the
// range are left untouched.
func (f *Finder) ImpostorsRange(outIdx *core.IntMatrix, outDist *mat.Dense, data *mat.Dense, labels []int, begin, batchSize int) error {
	_, n := data.Dims()
	if err := f.check(outIdx, outDist, n, labels); err != nil {
		return err
	}
	if begin < 0 || batchSize < 0 || begin+batchSize > n {
		return fmt.Errorf("range [%d, %d) out of bounds for %d points", begin, begin+batchSize, n)
	}

	log.Debug().Msgf("Computing %d impostors for points [%d, %d)", f.k, begin, begin+batchSize)

	slots := make([]slot, f.k)
	for i := begin; i < begin+batchSize; i++ {
		for s := range slots {
			slots[s] = slot{}
		}
		pi := data.ColView(i)
		for c := 0; c < n; c++ {
			if labels[c] == labels[i] {
				continue
			}
			d := f.metric.Evaluate(pi, data.ColView(c))
			insert(slot{index: c, dist: d, set: true}, slots)
		}
		for l := range slots {
			if !slots[l].set {
				return fmt.Errorf("point %d has fewer than %d different-label neighbors", i, f.k)
			}
			outIdx.Set(l, i, slots[l].index)
			if outDist != nil {
				outDist.Set(l, i, slots[l].dist)
			}
		}
	}
	return nil
}

// check validates output shapes and label alignment.
func (f *Finder) check(out *core.IntMatrix, dist *mat.Dense, n int, labels []int) error {
	if n == 0 {
		return fmt.Errorf("dataset has no points")
	}
	if len(labels) != n {
		return fmt.Errorf("got %d labels for %d points", len(labels), n)
	}
	if r, c := out.Dims(); r != f.k || c != n {
		return fmt.Errorf("output index matrix is %dx%d, want %dx%d", r, c, f.k, n)
	}
	if dist != nil {
		if r, c := dist.Dims(); r != f.k || c != n {
			return fmt.Errorf("output distance matrix is %dx%d, want %dx%d", r, c, f.k, n)
		}
	}
	return nil
}
