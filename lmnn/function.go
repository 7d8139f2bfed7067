// Package lmnn implements the large-margin nearest-neighbor (LMNN)
// objective: a cost-and-gradient function over a learned linear
// transformation, built for consumption by an external iterative
// optimizer. The objective pulls each point towards its same-label
// target neighbors and pushes differently-labeled impostors out past
// a unit safety margin.
//
// A Function instance owns mutable cache state (triplet bounds,
// transformation snapshots, an iteration counter) and must be driven
// from a single goroutine; calls are strictly sequential.
package lmnn

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/patrikhermansson/lmnn/constraints"
	"github.com/patrikhermansson/lmnn/core"
)

// margin is the required separation between a point's impostors and
// its target neighbors (the 1 in the hinge term 1+eval).
const margin = 1.0

// Function is the LMNN objective. It is constructed over a fixed
// column-major dataset (one point per column) and evaluated at
// candidate transformation matrices supplied by the optimizer.
type Function struct {
	dataset *mat.Dense // d x n, one point per column
	labels  []int      // class label per column
	k       int        // neighbors per point
	metric  core.Metric
	reg     float64 // blend between pull (1-reg) and push (reg) terms
	period  int     // impostor refresh period, in evaluations

	finder *constraints.Finder
	rng    *rand.Rand

	iteration int // shared evaluation counter, drives the refresh cadence

	transformed *mat.Dense // transformation * dataset, reused across calls

	targetNeighbors *core.IntMatrix // k x n, fixed until Shuffle
	impostors       *core.IntMatrix // k x n, refreshed every period evaluations
	impDistance     *mat.Dense      // k x n impostor distances from the last refresh

	cache      *evalCache // per-triplet margin-violation values
	maxImpNorm *mat.Dense // k x n running max impostor norm per cache cell

	transformationOld      *mat.Dense   // global snapshot, full-dataset path
	transformationOldPoint []*mat.Dense // per-point snapshots, batch path

	pCij  *mat.Dense // precomputed pull-term covariance, d x d
	norms []float64  // Euclidean norm of each raw point
}

// NewFunction creates an LMNN objective over the given dataset and
// labels. The dataset has one point per column and is borrowed: the
// Function must not outlive it, and the caller must not mutate it
// while the Function is in use. k is the number of target neighbors
// and impostors per point, regularization in [0,1] blends the pull
// and push terms, and period is the number of evaluations between
// impostor refreshes. A nil metric defaults to squared Euclidean.
func NewFunction(dataset *mat.Dense, labels []int, k int, regularization float64,
	period int, metric core.Metric) (*Function, error) {

	if dataset == nil {
		return nil, fmt.Errorf("dataset must not be nil")
	}
	d, n := dataset.Dims()
	if n == 0 {
		return nil, fmt.Errorf("dataset has no points")
	}
	if len(labels) != n {
		return nil, fmt.Errorf("got %d labels for %d points", len(labels), n)
	}
	if k < 1 || k >= n {
		return nil, fmt.Errorf("number of neighbors must be in [1, %d), got %d", n, k)
	}
	if regularization < 0 || regularization > 1 {
		return nil, fmt.Errorf("regularization must be in [0, 1], got %g", regularization)
	}
	if period < 1 {
		return nil, fmt.Errorf("refresh period must be at least 1, got %d", period)
	}
	if metric == nil {
		metric = core.SquaredEuclidean{}
	}

	finder, err := constraints.NewFinder(k, metric)
	if err != nil {
		return nil, err
	}

	f := &Function{
		dataset:                dataset,
		labels:                 labels,
		k:                      k,
		metric:                 metric,
		reg:                    regularization,
		period:                 period,
		finder:                 finder,
		rng:                    rand.New(rand.NewSource(core.GetSeed())),
		transformed:            mat.DenseCopyOf(dataset),
		targetNeighbors:        core.NewIntMatrix(k, n),
		impostors:              core.NewIntMatrix(k, n),
		impDistance:            mat.NewDense(k, n, nil),
		cache:                  newEvalCache(k, n),
		maxImpNorm:             mat.NewDense(k, n, nil),
		transformationOldPoint: make([]*mat.Dense, n),
		pCij:                   mat.NewDense(d, d, nil),
		norms:                  make([]float64, n),
	}

	// Initial neighbor relations on the raw (untransformed) dataset.
	if err := f.finder.TargetNeighbors(f.targetNeighbors, f.dataset, f.labels); err != nil {
		return nil, err
	}
	if err := f.finder.Impostors(f.impostors, nil, f.dataset, f.labels); err != nil {
		return nil, err
	}

	// Precompute the transformation-independent pull term and norms.
	f.precalculate()

	log.Info().Msgf("Created LMNN objective: %d points, %d dimensions, k=%d, regularization=%g, refresh period=%d",
		n, d, k, regularization, period)

	return f, nil
}

// NumFunctions returns the number of separable terms in the
// objective, which equals the number of data points. Optimizers use
// it to partition [0, NumFunctions()) into batches.
func (f *Function) NumFunctions() int {
	_, n := f.dataset.Dims()
	return n
}

// Dataset returns the dataset the objective currently evaluates
// against. After a Shuffle the column order differs from the dataset
// passed to NewFunction.
func (f *Function) Dataset() *mat.Dense {
	return f.dataset
}

// Labels returns the label per dataset column, aligned with Dataset.
func (f *Function) Labels() []int {
	return f.labels
}

// K returns the number of target neighbors and impostors per point.
func (f *Function) K() int {
	return f.k
}

// precalculate computes pCij, the sum over all points and target
// neighbors of the outer product of the raw difference vectors, and
// the per-point raw norms used by the cache bound. Both depend only
// on the dataset and the target-neighbor assignment.
func (f *Function) precalculate() {
	d, n := f.dataset.Dims()
	f.pCij = mat.NewDense(d, d, nil)
	for i := 0; i < n; i++ {
		f.norms[i] = mat.Norm(f.dataset.ColView(i), 2)
		for j := 0; j < f.k; j++ {
			addOuterDiff(f.pCij, f.dataset, i, f.targetNeighbors.At(j, i), 1)
		}
	}
}

// Shuffle permutes the dataset columns (and every column-aligned
// cache) by a uniformly random ordering, then recomputes the target
// neighbors against the new ordering. The multiset of (point, label)
// pairs is unchanged. Impostors are left stale; they are refreshed on
// the next scheduled evaluation. The caller's original dataset is not
// touched: the Function owns a permuted copy afterwards.
func (f *Function) Shuffle() error {
	d, n := f.dataset.Dims()
	ordering := f.rng.Perm(n)

	newDataset := mat.NewDense(d, n, nil)
	newLabels := make([]int, n)
	newNorms := make([]float64, n)
	newMaxImpNorm := mat.NewDense(f.k, n, nil)
	newSnapshots := make([]*mat.Dense, n)

	for i, src := range ordering {
		for r := 0; r < d; r++ {
			newDataset.Set(r, i, f.dataset.At(r, src))
		}
		newLabels[i] = f.labels[src]
		newNorms[i] = f.norms[src]
		for l := 0; l < f.k; l++ {
			newMaxImpNorm.Set(l, i, f.maxImpNorm.At(l, src))
		}
		newSnapshots[i] = f.transformationOldPoint[src]
	}
	f.cache.permute(ordering)

	f.dataset = newDataset
	f.labels = newLabels
	f.norms = newNorms
	f.maxImpNorm = newMaxImpNorm
	f.transformationOldPoint = newSnapshots

	// Indices changed, so the target-neighbor table must be rebuilt.
	// pCij sums over all points and is invariant under permutation.
	return f.finder.TargetNeighbors(f.targetNeighbors, f.dataset, f.labels)
}

// Evaluate computes the objective cost at the given transformation
// over the whole dataset. Every period-th call refreshes the impostor
// table on the transformed dataset before costing.
func (f *Function) Evaluate(transformation *mat.Dense) (float64, error) {
	_, n := f.dataset.Dims()
	f.transformed.Mul(transformation, f.dataset)

	refresh, err := f.advance(0, n)
	if err != nil {
		return 0, err
	}

	cost := f.evalRange(transformation, 0, n, refresh, false, nil, nil)

	f.snapshotGlobal(transformation)
	return cost, nil
}

// EvaluateBatch computes the objective cost restricted to points in
// [begin, begin+batchSize). It maintains one transformation snapshot
// per point, so batches evaluated at different iterations keep sound
// cache bounds independently.
func (f *Function) EvaluateBatch(transformation *mat.Dense, begin, batchSize int) (float64, error) {
	if err := f.checkRange(begin, batchSize); err != nil {
		return 0, err
	}
	f.transformed.Mul(transformation, f.dataset)

	refresh, err := f.advance(begin, batchSize)
	if err != nil {
		return 0, err
	}

	return f.evalRange(transformation, begin, batchSize, refresh, true, nil, nil), nil
}

// Gradient computes the objective gradient at the given
// transformation over the whole dataset. Triplet values cached by a
// preceding Evaluate at the same transformation are reused; anything
// else is evaluated exactly. Gradient performs no impostor refresh
// and does not advance the evaluation counter.
func (f *Function) Gradient(transformation *mat.Dense) (*mat.Dense, error) {
	d, n := f.dataset.Dims()
	f.transformed.Mul(transformation, f.dataset)

	cil := mat.NewDense(d, d, nil)
	f.gradRange(0, n, nil, cil)

	return assembleGradient(transformation, f.reg, f.pCij, cil), nil
}

// GradientBatch computes the gradient restricted to points in
// [begin, begin+batchSize). The pull term is accumulated over the
// batch rather than taken from the precomputed whole-dataset sum.
func (f *Function) GradientBatch(transformation *mat.Dense, begin, batchSize int) (*mat.Dense, error) {
	if err := f.checkRange(begin, batchSize); err != nil {
		return nil, err
	}
	d, _ := f.dataset.Dims()
	f.transformed.Mul(transformation, f.dataset)

	cij := mat.NewDense(d, d, nil)
	cil := mat.NewDense(d, d, nil)
	f.gradRange(begin, batchSize, cij, cil)

	return assembleGradient(transformation, f.reg, cij, cil), nil
}

// EvaluateWithGradient computes the cost and gradient in one pass
// over the whole dataset, sharing the per-triplet metric evaluations
// between the two. Semantics match Evaluate followed by Gradient.
func (f *Function) EvaluateWithGradient(transformation *mat.Dense) (float64, *mat.Dense, error) {
	d, n := f.dataset.Dims()
	f.transformed.Mul(transformation, f.dataset)

	refresh, err := f.advance(0, n)
	if err != nil {
		return 0, nil, err
	}

	cil := mat.NewDense(d, d, nil)
	cost := f.evalRange(transformation, 0, n, refresh, false, nil, cil)

	f.snapshotGlobal(transformation)
	return cost, assembleGradient(transformation, f.reg, f.pCij, cil), nil
}

// EvaluateWithGradientBatch computes the cost and gradient in one
// pass over points in [begin, begin+batchSize).
func (f *Function) EvaluateWithGradientBatch(transformation *mat.Dense, begin, batchSize int) (float64, *mat.Dense, error) {
	if err := f.checkRange(begin, batchSize); err != nil {
		return 0, nil, err
	}
	d, _ := f.dataset.Dims()
	f.transformed.Mul(transformation, f.dataset)

	refresh, err := f.advance(begin, batchSize)
	if err != nil {
		return 0, nil, err
	}

	cij := mat.NewDense(d, d, nil)
	cil := mat.NewDense(d, d, nil)
	cost := f.evalRange(transformation, begin, batchSize, refresh, true, cij, cil)

	return cost, assembleGradient(transformation, f.reg, cij, cil), nil
}

// advance bumps the shared evaluation counter and, on every period-th
// call, refreshes the impostor table and distance cache for the given
// point range on the transformed dataset. It reports whether this
// call refreshed, in which case the freshly captured distances may
// substitute for exact impostor metric evaluations.
func (f *Function) advance(begin, batchSize int) (bool, error) {
	refresh := f.iteration%f.period == 0
	f.iteration++
	if !refresh {
		return false, nil
	}
	log.Debug().Msgf("Refreshing impostors for points [%d, %d) at iteration %d",
		begin, begin+batchSize, f.iteration)
	err := f.finder.ImpostorsRange(f.impostors, f.impDistance, f.transformed, f.labels, begin, batchSize)
	if err != nil {
		return false, err
	}
	return true, nil
}

// evalRange walks the triplets of points in [begin, begin+batchSize)
// applying the bound cache, and returns the summed cost (pull plus
// hinge terms). When cij or cil is non-nil the pull and push
// covariances are accumulated into them as a side effect, which is
// how the fused cost-and-gradient paths avoid a second walk.
//
// perPoint selects the snapshot mode: the full-dataset path measures
// transformation movement against one global snapshot, the batch path
// against the per-point snapshots (updated here, forward only).
func (f *Function) evalRange(transformation *mat.Dense, begin, batchSize int,
	refresh, perPoint bool, cij, cil *mat.Dense) float64 {

	var cost float64

	// Movement of the transformation since the global snapshot. The
	// per-point mode recomputes this per point below.
	var globalDiff float64
	if !perPoint && f.transformationOld != nil {
		globalDiff = transformationDelta(transformation, f.transformationOld)
	}

	for i := begin; i < begin+batchSize; i++ {
		xi := f.transformed.ColView(i)

		// Pull term: cost of the distance to each target neighbor.
		for j := 0; j < f.k; j++ {
			target := f.targetNeighbors.At(j, i)
			cost += (1 - f.reg) * f.metric.Evaluate(xi, f.transformed.ColView(target))
			if cij != nil {
				addOuterDiff(cij, f.dataset, i, target, 1)
			}
		}

		diff := globalDiff
		var snapshotOK bool
		if perPoint {
			snapshotOK = f.transformationOldPoint[i] != nil
			if snapshotOK {
				diff = transformationDelta(transformation, f.transformationOldPoint[i])
			}
		} else {
			snapshotOK = f.transformationOld != nil
		}

		// Push term over (impostor rank l, neighbor rank j) triplets.
		for j := f.k - 1; j >= 0; j-- {
			for l := 0; l < f.k; l++ {
				var eval float64
				exact := true

				if old, ok := f.cache.at(l, j, i); snapshotOK && ok {
					// A cached value exists: bound how far it can
					// have moved given the transformation delta.
					imp := f.impostors.At(l, i)
					if f.norms[imp] > f.maxImpNorm.At(l, i) {
						f.maxImpNorm.Set(l, i, f.norms[imp])
					}
					eval = old + diff*
						(f.norms[f.targetNeighbors.At(j, i)]+f.maxImpNorm.At(l, i)+2*f.norms[i])

					if eval <= -margin {
						// Still past the margin under the bound; the
						// exact value cannot contribute cost.
						exact = false
					} else {
						// The bound no longer guarantees anything.
						f.maxImpNorm.Set(l, i, 0)
						f.cache.invalidate(l, j, i)
					}
				}

				if exact {
					targetDist := f.metric.Evaluate(xi,
						f.transformed.ColView(f.targetNeighbors.At(j, i)))
					if refresh {
						// The impostor distances were captured by this
						// call's refresh; reuse them.
						eval = targetDist - f.impDistance.At(l, i)
					} else {
						eval = targetDist - f.metric.Evaluate(xi,
							f.transformed.ColView(f.impostors.At(l, i)))
					}
				}

				f.cache.set(l, j, i, eval)

				// Breaking point: impostor ranks are ordered, so once
				// one triplet is past the margin the remaining ranks
				// for this neighbor contribute nothing.
				if eval <= -margin {
					break
				}

				cost += f.reg * (margin + eval)

				if cil != nil {
					addOuterDiff(cil, f.dataset, i, f.targetNeighbors.At(j, i), 1)
					addOuterDiff(cil, f.dataset, i, f.impostors.At(l, i), -1)
				}
			}
		}

		if perPoint {
			f.snapshotPoint(i, transformation)
		}
	}

	return cost
}

// gradRange accumulates the push covariance (and, when cij is
// non-nil, the per-point pull covariance) for points in
// [begin, begin+batchSize). Cached triplet values from the preceding
// evaluation are reused without the bound shortcut; missing entries
// are computed exactly. The caches themselves are not modified.
func (f *Function) gradRange(begin, batchSize int, cij, cil *mat.Dense) {
	for i := begin; i < begin+batchSize; i++ {
		xi := f.transformed.ColView(i)

		if cij != nil {
			for j := 0; j < f.k; j++ {
				addOuterDiff(cij, f.dataset, i, f.targetNeighbors.At(j, i), 1)
			}
		}

		for j := f.k - 1; j >= 0; j-- {
			for l := 0; l < f.k; l++ {
				target := f.targetNeighbors.At(j, i)
				imp := f.impostors.At(l, i)

				eval, ok := f.cache.at(l, j, i)
				if !ok {
					eval = f.metric.Evaluate(xi, f.transformed.ColView(target)) -
						f.metric.Evaluate(xi, f.transformed.ColView(imp))
				}

				// A triplet exactly on the margin carries zero cost
				// but still a live subgradient, so the pruning test
				// is strict here.
				if eval < -margin {
					break
				}

				addOuterDiff(cil, f.dataset, i, target, 1)
				addOuterDiff(cil, f.dataset, i, imp, -1)
			}
		}
	}
}

// snapshotGlobal records the transformation the full-dataset caches
// were last advanced at.
func (f *Function) snapshotGlobal(transformation *mat.Dense) {
	if f.transformationOld == nil {
		f.transformationOld = mat.DenseCopyOf(transformation)
	} else {
		f.transformationOld.Copy(transformation)
	}
}

// snapshotPoint records the transformation point i was last evaluated
// at. Snapshots only ever move forward; they are never rolled back.
func (f *Function) snapshotPoint(i int, transformation *mat.Dense) {
	if f.transformationOldPoint[i] == nil {
		f.transformationOldPoint[i] = mat.DenseCopyOf(transformation)
	} else {
		f.transformationOldPoint[i].Copy(transformation)
	}
}

// checkRange validates a batch range against the dataset size.
func (f *Function) checkRange(begin, batchSize int) error {
	_, n := f.dataset.Dims()
	if begin < 0 || batchSize < 0 || begin+batchSize > n {
		return fmt.Errorf("range [%d, %d) out of bounds for %d points", begin, begin+batchSize, n)
	}
	return nil
}

// transformationDelta measures how far the transformation has moved
// since a snapshot, as the Frobenius norm of the difference. The
// cache bound scales with this value.
func transformationDelta(current, old *mat.Dense) float64 {
	var delta mat.Dense
	delta.Sub(current, old)
	return mat.Norm(&delta, 2)
}

// addOuterDiff adds scale * (x_i - x_j)(x_i - x_j)^T to dst, where
// x_i and x_j are columns of data.
func addOuterDiff(dst, data *mat.Dense, i, j int, scale float64) {
	d, _ := data.Dims()
	for r := 0; r < d; r++ {
		dr := data.At(r, i) - data.At(r, j)
		if dr == 0 {
			continue
		}
		for c := 0; c < d; c++ {
			dc := data.At(c, i) - data.At(c, j)
			dst.Set(r, c, dst.At(r, c)+scale*dr*dc)
		}
	}
}

// assembleGradient combines the pull and push covariances into the
// gradient 2 * transformation * ((1-reg)*cij + reg*cil).
func assembleGradient(transformation *mat.Dense, reg float64, cij, cil *mat.Dense) *mat.Dense {
	d, _ := cij.Dims()
	combined := mat.NewDense(d, d, nil)
	combined.Scale(1-reg, cij)
	var push mat.Dense
	push.Scale(reg, cil)
	combined.Add(combined, &push)

	var grad mat.Dense
	grad.Mul(transformation, combined)
	grad.Scale(2, &grad)
	return &grad
}
