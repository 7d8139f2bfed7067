package lmnn

// evalCache stores the most recent margin-violation value for every
// (impostor rank, neighbor rank, point) triplet, together with an
// explicit validity flag. An invalid entry means the triplet must be
// evaluated exactly on its next visit.
type evalCache struct {
	k, n int
	val  []float64
	ok   []bool
}

// newEvalCache creates an all-invalid cache for n points with k
// neighbor and k impostor ranks.
func newEvalCache(k, n int) *evalCache {
	return &evalCache{
		k:   k,
		n:   n,
		val: make([]float64, k*k*n),
		ok:  make([]bool, k*k*n),
	}
}

// index maps (impostor rank l, neighbor rank j, point i) to flat
// storage. Entries of one point are contiguous so that permuting
// points moves whole blocks.
func (c *evalCache) index(l, j, i int) int {
	return (i*c.k+j)*c.k + l
}

// at returns the cached value for the triplet and whether it is valid.
func (c *evalCache) at(l, j, i int) (float64, bool) {
	idx := c.index(l, j, i)
	return c.val[idx], c.ok[idx]
}

// set stores a value for the triplet and marks it valid.
func (c *evalCache) set(l, j, i int, v float64) {
	idx := c.index(l, j, i)
	c.val[idx] = v
	c.ok[idx] = true
}

// invalidate marks the triplet entry as unset.
func (c *evalCache) invalidate(l, j, i int) {
	c.ok[c.index(l, j, i)] = false
}

// permute reorders the per-point blocks so that block i afterwards
// holds what block ordering[i] held before.
func (c *evalCache) permute(ordering []int) {
	block := c.k * c.k
	newVal := make([]float64, len(c.val))
	newOK := make([]bool, len(c.ok))
	for i, src := range ordering {
		copy(newVal[i*block:(i+1)*block], c.val[src*block:(src+1)*block])
		copy(newOK[i*block:(i+1)*block], c.ok[src*block:(src+1)*block])
	}
	c.val = newVal
	c.ok = newOK
}
