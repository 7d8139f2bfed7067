package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Metric computes a pairwise distance between two column vectors.
// Implementations must return a nonnegative value and must not
// modify their arguments.
type Metric interface {

	// Evaluate returns the distance between vectors a and b.
	Evaluate(a, b mat.Vector) float64
}

// Metrics is a map of human–readable names to metric instances.
// You can use it to choose a metric by name.
var Metrics = map[string]Metric{
	"euclidean":         Euclidean{},
	"squared_euclidean": SquaredEuclidean{},
}

// SquaredEuclidean is the squared Euclidean (L2^2) metric.
// It is the default metric for metric learning: the closed-form
// gradient of the objective is exact under it.
type SquaredEuclidean struct{}

// Evaluate computes the squared Euclidean distance between two vectors.
func (SquaredEuclidean) Evaluate(a, b mat.Vector) float64 {
	if a.Len() == 0 || b.Len() == 0 {
		panic("vectors must not be empty")
	}
	if a.Len() != b.Len() {
		panic("vectors must have the same length")
	}
	var sum float64
	for i := 0; i < a.Len(); i++ {
		d := a.AtVec(i) - b.AtVec(i)
		sum += d * d
	}
	return sum
}

// Euclidean is the Euclidean (L2) metric.
type Euclidean struct{}

// Evaluate computes the Euclidean distance between two vectors.
func (Euclidean) Evaluate(a, b mat.Vector) float64 {
	return math.Sqrt(SquaredEuclidean{}.Evaluate(a, b))
}
