package kernel

import (
	"math"

	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
	"github.com/swarmguard/bcdsolver/internal/threadpool"
)

// ReconcileWeights is phase 1 of the worker's dual update (spec §4.5):
// given the new weight slice pulled from servers, compute the per-
// column step deltaW against the worker's cached copy, advance Δ via
// NewDelta, and apply the NaN-inactive sentinel rule (clearing the
// worker's mirror of the active set and zeroing the cached weight).
// wLocal, delta and activeSet are the worker's full-length (p) mirrors;
// a is the global index of wNew[0].
func ReconcileWeights(wLocal, delta []float64, activeSet []bool, a int, wNew []float64) (deltaW []float64) {
	deltaW = make([]float64, len(wNew))
	for i, nw := range wNew {
		k := a + i
		if sentinel.Inactive(nw) {
			activeSet[k] = false
			wLocal[k] = 0
			deltaW[i] = 0
			continue
		}
		deltaW[i] = nw - wLocal[k]
		delta[k] = NewDelta(deltaW[i], delta[k])
		wLocal[k] = nw
	}
	return deltaW
}

// ApplyDual is phase 2 of the worker's dual update (spec §4.5): for
// every column with a nonzero step, multiply d_i by exp(y_i*deltaW) (or
// exp(y_i*deltaW*v) in the non-binary case) over that column's
// nonzeros, parallelized over disjoint row partitions so the
// multiplicative updates race-free.
func ApplyDual(pool *threadpool.Pool, mat *matrix.Matrix, a int, deltaW []float64, activeSet []bool, y, dual []float64) {
	blk := mat.ColBlock(a, a+len(deltaW))
	m := mat.Rows
	pool.ParallelFor(m, 1, func(rowLo, rowHi int) {
		applyDualRowPartition(blk, deltaW, activeSet, y, dual, rowLo, rowHi)
	})
}

func applyDualRowPartition(blk matrix.ColumnRange, deltaW []float64, activeSet []bool, y, dual []float64, rowLo, rowHi int) {
	for j, wd := range deltaW {
		k := blk.A + j
		if wd == 0 || !activeSet[k] {
			continue
		}
		rows, vals := blk.Column(j)
		for idx, i := range rows {
			if i < rowLo || i >= rowHi {
				continue
			}
			if blk.Mat.Binary {
				dual[i] *= math.Exp(y[i] * wd)
			} else {
				dual[i] *= math.Exp(y[i] * wd * vals[idx])
			}
		}
	}
}
