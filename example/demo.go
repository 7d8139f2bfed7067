// Package example contains a runnable demonstration of metric
// learning on synthetic data: it generates labeled Gaussian clusters,
// trains a transformation with mini-batch gradient descent, and
// reports nearest-neighbor accuracy before and after learning.
package example

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/core"
	"github.com/patrikhermansson/lmnn/kmeanspp"
	"github.com/patrikhermansson/lmnn/lmnn"
)

// DemoConfig bundles the parameters of the synthetic training run.
type DemoConfig struct {
	Dimension      int     // dimensionality of the generated points
	Classes        int     // number of classes
	PointsPerClass int     // points generated per class
	Spread         float64 // standard deviation of each class cloud
	Neighbors      int     // target neighbors / impostors per point (k)
	Regularization float64
	RefreshPeriod  int // impostor refresh period, in evaluations
	Epochs         int
	BatchSize      int
	LearningRate   float64
}

// DefaultDemoConfig returns the parameters used by the CLI demo.
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		Dimension:      4,
		Classes:        3,
		PointsPerClass: 40,
		Spread:         1.2,
		Neighbors:      3,
		Regularization: 0.5,
		RefreshPeriod:  10,
		Epochs:         15,
		BatchSize:      20,
		LearningRate:   1e-4,
	}
}

// GenerateClusters builds a synthetic labeled dataset: class centers
// are picked from a random candidate cloud with farthest-point-biased
// sampling (so they end up well separated), then each class gets a
// Gaussian cloud around its center. Points are columns of the
// returned matrix.
func GenerateClusters(cfg DemoConfig, rng *rand.Rand) (*mat.Dense, []int, error) {
	// Candidate cloud for center selection.
	candidates := mat.NewDense(cfg.Dimension, 50*cfg.Classes, nil)
	_, nc := candidates.Dims()
	for i := 0; i < nc; i++ {
		for r := 0; r < cfg.Dimension; r++ {
			candidates.Set(r, i, rng.Float64()*20-10)
		}
	}
	centers, err := kmeanspp.Seed(candidates, cfg.Classes, rng)
	if err != nil {
		return nil, nil, err
	}

	n := cfg.Classes * cfg.PointsPerClass
	data := mat.NewDense(cfg.Dimension, n, nil)
	labels := make([]int, n)
	for c := 0; c < cfg.Classes; c++ {
		for p := 0; p < cfg.PointsPerClass; p++ {
			i := c*cfg.PointsPerClass + p
			labels[i] = c
			for r := 0; r < cfg.Dimension; r++ {
				data.Set(r, i, centers.At(r, c)+rng.NormFloat64()*cfg.Spread)
			}
		}
	}
	return data, labels, nil
}

// NearestNeighborAccuracy computes leave-one-out 1-NN classification
// accuracy on the dataset after applying the transformation. With
// fewer than two points there is no neighbor to classify against and
// the accuracy is 0.
func NearestNeighborAccuracy(data *mat.Dense, labels []int, transformation *mat.Dense) float64 {
	d, n := data.Dims()
	if n < 2 {
		return 0
	}
	transformed := mat.NewDense(d, n, nil)
	transformed.Mul(transformation, data)

	metric := core.SquaredEuclidean{}
	correct := 0
	for i := 0; i < n; i++ {
		best := -1
		bestDist := 0.0
		for c := 0; c < n; c++ {
			if c == i {
				continue
			}
			dist := metric.Evaluate(transformed.ColView(i), transformed.ColView(c))
			if best == -1 || dist < bestDist {
				best = c
				bestDist = dist
			}
		}
		if labels[best] == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Train runs mini-batch gradient descent over the objective, starting
// from the identity transformation, shuffling between epochs. It
// returns the learned transformation.
func Train(f *lmnn.Function, cfg DemoConfig) (*mat.Dense, error) {
	d, _ := f.Dataset().Dims()
	transformation := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		transformation.Set(i, i, 1)
	}

	n := f.NumFunctions()
	batches := (n + cfg.BatchSize - 1) / cfg.BatchSize

	// Create a progress bar with a newline on completion.
	bar := progressbar.NewOptions(cfg.Epochs*batches,
		progressbar.OptionOnCompletion(func() { fmt.Print("\n") }),
	)

	var step mat.Dense
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for begin := 0; begin < n; begin += cfg.BatchSize {
			size := cfg.BatchSize
			if begin+size > n {
				size = n - begin
			}
			cost, grad, err := f.EvaluateWithGradientBatch(transformation, begin, size)
			if err != nil {
				return nil, err
			}
			step.Scale(cfg.LearningRate, grad)
			transformation.Sub(transformation, &step)

			log.Debug().Msgf("epoch %d batch [%d, %d): cost %.4f", epoch, begin, begin+size, cost)
			if err := bar.Add(1); err != nil {
				return nil, err
			}
		}
		// Decorrelate batch composition from the data order.
		if err := f.Shuffle(); err != nil {
			return nil, err
		}
	}

	return transformation, nil
}

// RunDemo generates data, trains a metric, and prints a report.
func RunDemo(cfg DemoConfig) error {
	rng := rand.New(rand.NewSource(core.GetSeed()))

	data, labels, err := GenerateClusters(cfg, rng)
	if err != nil {
		return err
	}
	_, n := data.Dims()
	fmt.Printf("Generated %d points in %d dimensions across %d classes\n",
		n, cfg.Dimension, cfg.Classes)

	f, err := lmnn.NewFunction(data, labels, cfg.Neighbors, cfg.Regularization,
		cfg.RefreshPeriod, nil)
	if err != nil {
		return err
	}

	d, _ := data.Dims()
	before := NearestNeighborAccuracy(data, labels, identityMatrix(d))
	fmt.Printf("1-NN accuracy before learning: %.3f\n", before)

	start := time.Now()
	transformation, err := Train(f, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Trained for %d epochs in %.2fs\n", cfg.Epochs, time.Since(start).Seconds())

	// Accuracy is measured on the function's dataset: Shuffle reorders
	// the columns, so the original ordering no longer applies.
	after := NearestNeighborAccuracy(f.Dataset(), f.Labels(), transformation)
	fmt.Printf("1-NN accuracy after learning:  %.3f\n", after)

	return nil
}

// identityMatrix returns the d x d identity.
func identityMatrix(d int) *mat.Dense {
	m := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		m.Set(i, i, 1)
	}
	return m
}
