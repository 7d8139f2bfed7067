package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// almostEqual compares two floating-point values with a tolerance.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name                     string
		a, b                     []float64
		expectedEuclidean        float64
		expectedSquaredEuclidean float64
	}{
		{
			name:                     "Identical Vectors",
			a:                        []float64{1, 2, 3, 4, 5, 6},
			b:                        []float64{1, 2, 3, 4, 5, 6},
			expectedEuclidean:        0,
			expectedSquaredEuclidean: 0,
		},
		{
			name: "Opposite Order",
			a:    []float64{1, 2, 3, 4, 5, 6},
			b:    []float64{6, 5, 4, 3, 2, 1},
			// Euclidean: sqrt(70), squared=70.
			expectedEuclidean:        math.Sqrt(70),
			expectedSquaredEuclidean: 70,
		},
		{
			name: "Binary Opposites",
			a:    []float64{1, 0, 0, 1, 0, 1},
			b:    []float64{0, 1, 1, 0, 1, 0},
			// Euclidean: sqrt(6), squared=6.
			expectedEuclidean:        math.Sqrt(6),
			expectedSquaredEuclidean: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mat.NewVecDense(len(tt.a), tt.a)
			b := mat.NewVecDense(len(tt.b), tt.b)

			if got := (Euclidean{}).Evaluate(a, b); !almostEqual(got, tt.expectedEuclidean, 1e-12) {
				t.Errorf("Euclidean = %v; want %v", got, tt.expectedEuclidean)
			}
			if got := (SquaredEuclidean{}).Evaluate(a, b); !almostEqual(got, tt.expectedSquaredEuclidean, 1e-12) {
				t.Errorf("SquaredEuclidean = %v; want %v", got, tt.expectedSquaredEuclidean)
			}
		})
	}
}

func TestMetricsMap(t *testing.T) {
	for _, name := range []string{"euclidean", "squared_euclidean"} {
		if _, ok := Metrics[name]; !ok {
			t.Errorf("Metrics map is missing %q", name)
		}
	}
}

func TestMetricPanicsOnMismatchedLengths(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic on mismatched vector lengths, but got none")
		}
	}()
	a := mat.NewVecDense(2, []float64{1, 2})
	b := mat.NewVecDense(3, []float64{1, 2, 3})
	SquaredEuclidean{}.Evaluate(a, b)
}
