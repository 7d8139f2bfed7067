// Package kmeanspp implements the k-means++ seeding strategy:
// centroids are sampled one at a time, each with probability
// proportional to its squared distance from the closest centroid
// chosen so far. The careful seeding gives the classic O(log k)
// competitive guarantee for the k-means objective.
package kmeanspp

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/core"
)

// Seed picks clusters initial centroids from the dataset (one point
// per column) and returns them as the columns of a new matrix. A nil
// rng falls back to a generator seeded from core.GetSeed.
func Seed(data *mat.Dense, clusters int, rng *rand.Rand) (*mat.Dense, error) {
	d, n := data.Dims()
	if n == 0 {
		return nil, fmt.Errorf("dataset has no points")
	}
	if clusters < 1 || clusters > n {
		return nil, fmt.Errorf("number of clusters must be in [1, %d], got %d", n, clusters)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(core.GetSeed()))
	}

	metric := core.SquaredEuclidean{}
	centroids := mat.NewDense(d, clusters, nil)

	// The first centroid is sampled uniformly.
	first := rng.Intn(n)
	setColumn(centroids, 0, data, first)

	distribution := make([]float64, n)
	for i := 1; i < clusters; i++ {
		// Weight every point by the squared distance to its closest
		// already-chosen centroid.
		for p := 0; p < n; p++ {
			minDistance := math.MaxFloat64
			for j := 0; j < i; j++ {
				distance := metric.Evaluate(data.ColView(p), centroids.ColView(j))
				if distance < minDistance {
					minDistance = distance
				}
			}
			distribution[p] = minDistance
		}

		// Normalize and turn the weights into a CDF.
		var total float64
		for _, w := range distribution {
			total += w
		}
		if total == 0 {
			// Every point coincides with a centroid; any choice works.
			setColumn(centroids, i, data, rng.Intn(n))
			continue
		}
		acc := 0.0
		for p := range distribution {
			acc += distribution[p] / total
			distribution[p] = acc
		}

		// Sample a point from the CDF. A sample landing exactly on the
		// CDF value of a zero-weight point (one coinciding with a
		// chosen centroid) would pick a duplicate, so step past any
		// massless entries.
		sample := rng.Float64()
		position := sort.SearchFloat64s(distribution, sample)
		if position >= n {
			position = n - 1
		}
		for position < n-1 && zeroWeight(distribution, position) {
			position++
		}
		setColumn(centroids, i, data, position)
	}

	return centroids, nil
}

// zeroWeight reports whether point p carries no mass in the CDF, that
// is, its cumulative value equals its predecessor's.
func zeroWeight(cdf []float64, p int) bool {
	if p == 0 {
		return cdf[0] == 0
	}
	return cdf[p] == cdf[p-1]
}

// setColumn copies column src of data into column dst of out.
func setColumn(out *mat.Dense, dst int, data *mat.Dense, src int) {
	d, _ := data.Dims()
	for r := 0; r < d; r++ {
		out.Set(r, dst, data.At(r, src))
	}
}
