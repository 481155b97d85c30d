package kernel

import (
	"math"

	"github.com/swarmguard/bcdsolver/internal/sentinel"
)

// WeightUpdateResult reports the side effects of UpdateWeight the
// caller needs to fold into shared server state: the new violation
// ceiling (spec §4.7, reset by the next UPDATE_MODEL's KKTθ install).
// Coordinates frozen by the call are visible only through activeSet
// and the NaN sentinel written into w.
type WeightUpdateResult struct {
	Violation float64
}

// UpdateWeight applies the shrinkage / trust-region coordinate update
// with KKT active-set filtering to a server-owned segment (spec §4.6).
// w, delta and activeSet are the server's slices for exactly that
// segment (same length and alignment as G and U, which come from the
// aggregated worker push of spec §4.3 step 2). eta and lambda are the
// learning rate and L1 penalty. violation is the running max to merge
// into (pass 0 if this is the first block of a freshly-reset
// iteration).
func UpdateWeight(w, delta []float64, activeSet []bool, G, U []float64, eta, lambda, violation float64, kktTheta float64) WeightUpdateResult {
	for i := range G {
		k := i
		g := G[i]
		u := U[i]/eta + 1e-10

		gPos := g + lambda
		gNeg := g - lambda

		if sentinel.Inactive(w[k]) {
			// Frozen by an earlier call: the sentinel stays in w until
			// the active set is reset, so leave it as-is for workers
			// to observe.
			continue
		}

		d := -w[k]
		vio := 0.0

		if w[k] == 0 {
			switch {
			case gPos < 0:
				vio = -gPos
			case gNeg > 0:
				vio = gNeg
			case gPos > kktTheta && gNeg < -kktTheta:
				activeSet[k] = false
				w[k] = sentinel.Mark()
				continue
			}
		}
		if vio > violation {
			violation = vio
		}

		switch {
		case gPos <= u*w[k]:
			d = -gPos / u
		case gNeg >= u*w[k]:
			d = -gNeg / u
		}

		d = Clamp(d, delta[k])
		w[k] += d
		delta[k] = NewDelta(d, delta[k])
	}
	return WeightUpdateResult{Violation: violation}
}

// NNZAndPenalty walks a server's local weight slice and returns the
// number of nonzero coordinates and the L1 penalty objective lambda *
// sum(|w|) (spec §4.7 server progress report). Inactive (NaN) and zero
// coordinates are excluded from both, matching the original solver's
// "if w == 0 || w != w: continue" rule.
func NNZAndPenalty(w []float64, lambda float64) (nnz int, objv float64) {
	var sum float64
	for _, v := range w {
		if v == 0 || math.IsNaN(v) {
			continue
		}
		nnz++
		sum += math.Abs(v)
	}
	return nnz, sum * lambda
}
