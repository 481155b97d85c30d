// Package kernel implements the three numerical kernels of the block
// coordinate descent solver: gradient/upper-bound accumulation (this
// file), the server-side shrinkage/trust-region weight update
// (weight.go), and the worker-side dual-variable refresh (dual.go).
package kernel

import (
	"math"

	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
	"github.com/swarmguard/bcdsolver/internal/threadpool"
)

// serialFallback is the column-count below which ComputeGradients runs
// on a single goroutine rather than splitting across the pool (spec
// §4.4: "if b-a < 64, fall back to one thread").
const serialFallback = 64

// upperBoundCap is the upper bound on tau*(1-tau) used to tighten U
// via the exponential trust-region envelope (spec §4.4 numerical
// notes).
const upperBoundCap = 0.25

// ComputeGradients computes the gradient G and curvature upper-bound U
// arrays over column range [a,b) of mat (global feature indices,
// spec §4.4). dual is the worker's full dual vector (length m_local,
// indexed by row); activeSet and delta are the worker's full-length
// (length p) mirrors of the server's active set and trust-region
// radius. G and U have length b-a.
func ComputeGradients(pool *threadpool.Pool, mat *matrix.Matrix, a, b int, y, dual []float64, activeSet []bool, delta []float64) (G, U []float64) {
	blk := mat.ColBlock(a, b)
	n := blk.Len()
	G = make([]float64, n)
	U = make([]float64, n)
	pool.ParallelFor(n, serialFallback, func(lo, hi int) {
		computeGradientsRange(blk, lo, hi, y, dual, activeSet, delta, G, U)
	})
	return G, U
}

// computeGradientsRange fills G[lo:hi] and the matching U slice for
// local columns [lo,hi) of blk (global index blk.A+j).
func computeGradientsRange(blk matrix.ColumnRange, lo, hi int, y, dual []float64, activeSet []bool, delta []float64, G, U []float64) {
	for j := lo; j < hi; j++ {
		k := blk.A + j
		if !activeSet[k] {
			G[j] = sentinel.Mark()
			U[j] = sentinel.Mark()
			continue
		}
		rows, vals := blk.Column(j)
		var g, u float64
		d := delta[k]
		if blk.Mat.Binary {
			d = math.Exp(delta[k])
		}
		for idx, i := range rows {
			tau := 1 / (1 + dual[i])
			if blk.Mat.Binary {
				g -= y[i] * tau
				u += math.Min(tau*(1-tau)*d, upperBoundCap)
			} else {
				v := vals[idx]
				g -= y[i] * tau * v
				u += math.Min(tau*(1-tau)*math.Exp(math.Abs(v)*d), upperBoundCap) * v * v
			}
		}
		G[j] = g
		U[j] = u
	}
}
