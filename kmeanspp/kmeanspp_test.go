package kmeanspp_test

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/kmeanspp"
)

// clusteredDataset returns six 2-d points: three near the origin and
// three near (100, 100).
func clusteredDataset() *mat.Dense {
	return mat.NewDense(2, 6, []float64{
		0, 1, 0, 100, 101, 100,
		0, 0, 1, 100, 100, 101,
	})
}

// isColumnOf reports whether column c of m equals some column of data.
func isColumnOf(m *mat.Dense, c int, data *mat.Dense) bool {
	d, n := data.Dims()
	for i := 0; i < n; i++ {
		match := true
		for r := 0; r < d; r++ {
			if m.At(r, c) != data.At(r, i) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestSeedReturnsDataPoints(t *testing.T) {
	data := clusteredDataset()
	rng := rand.New(rand.NewSource(1))

	centroids, err := kmeanspp.Seed(data, 3, rng)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	d, c := centroids.Dims()
	if d != 2 || c != 3 {
		t.Fatalf("centroids are %dx%d; want 2x3", d, c)
	}
	for i := 0; i < c; i++ {
		if !isColumnOf(centroids, i, data) {
			t.Errorf("centroid %d is not a dataset point", i)
		}
	}
}

func TestSeedSpreadsAcrossClusters(t *testing.T) {
	data := clusteredDataset()
	rng := rand.New(rand.NewSource(7))

	centroids, err := kmeanspp.Seed(data, 2, rng)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	// The squared-distance weighting makes picking both centroids
	// from the same far-apart cluster essentially impossible.
	nearOrigin := func(c int) bool { return centroids.At(0, c) < 50 }
	if nearOrigin(0) == nearOrigin(1) {
		t.Errorf("both centroids landed in the same cluster:\n%v", mat.Formatted(centroids))
	}
}

func TestSeedAllPoints(t *testing.T) {
	data := clusteredDataset()
	rng := rand.New(rand.NewSource(3))

	// Asking for as many centroids as points must still terminate and
	// return valid data points, even once all weights reach zero.
	centroids, err := kmeanspp.Seed(data, 6, rng)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	_, c := centroids.Dims()
	if c != 6 {
		t.Fatalf("got %d centroids; want 6", c)
	}
	for i := 0; i < c; i++ {
		if !isColumnOf(centroids, i, data) {
			t.Errorf("centroid %d is not a dataset point", i)
		}
	}
}

// zeroSource is a rand.Source that always yields zero, making Intn
// return 0 and Float64 return exactly 0.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

// TestSeedZeroSampleSkipsChosenPoint pins down CDF sampling when the
// draw is exactly 0: the first point has already been chosen (weight
// zero), so the second centroid must be the first point with mass,
// not a duplicate of the first.
func TestSeedZeroSampleSkipsChosenPoint(t *testing.T) {
	data := mat.NewDense(2, 3, []float64{
		0, 0, 1,
		0, 0, 0,
	})
	rng := rand.New(zeroSource{})

	centroids, err := kmeanspp.Seed(data, 2, rng)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if centroids.At(0, 0) != 0 || centroids.At(1, 0) != 0 {
		t.Fatalf("first centroid = (%v, %v); want (0, 0)",
			centroids.At(0, 0), centroids.At(1, 0))
	}
	if centroids.At(0, 1) != 1 || centroids.At(1, 1) != 0 {
		t.Errorf("second centroid = (%v, %v); want (1, 0)",
			centroids.At(0, 1), centroids.At(1, 1))
	}
}

func TestSeedErrors(t *testing.T) {
	data := clusteredDataset()

	if _, err := kmeanspp.Seed(data, 0, nil); err == nil {
		t.Errorf("expected error for zero clusters, but got none")
	}
	if _, err := kmeanspp.Seed(data, 7, nil); err == nil {
		t.Errorf("expected error for more clusters than points, but got none")
	}
}
