package kernel

import (
	"math"
	"testing"

	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
	"github.com/swarmguard/bcdsolver/internal/threadpool"
)

// gradAndWeightForSingleColumn runs the full worker-gradient ->
// server-weight pipeline for one binary column with nonzeros at rows
// 0 and 2, mirroring spec §8 scenarios S1/S2.
func gradAndWeightForSingleColumn(t *testing.T, y []float64, lambda, eta, deltaInit, kktTheta float64) (w, delta float64, result WeightUpdateResult) {
	t.Helper()
	offsets := []int{0, 2}
	indices := []int{0, 2}
	mat, err := matrix.New(4, 1, offsets, indices, nil, true)
	if err != nil {
		t.Fatalf("matrix.New: %v", err)
	}
	dual := []float64{1, 1, 1, 1} // exp(y*x^T*0) == 1
	activeSet := []bool{true}
	deltaArr := []float64{deltaInit}

	pool := threadpool.New(1)
	defer pool.Close()
	g, u := ComputeGradients(pool, mat, 0, 1, y, dual, activeSet, deltaArr)

	wArr := []float64{0}
	res := UpdateWeight(wArr, deltaArr, activeSet, g, u, eta, lambda, 0, kktTheta)
	return wArr[0], deltaArr[0], res
}

// TestWeightUpdateS1DegenerateCoordinateStaysZero is scenario S1: with
// y correlated equally to both signs of the single active column, the
// KKT condition at w==0 holds and w[0] remains 0.
func TestWeightUpdateS1DegenerateCoordinateStaysZero(t *testing.T) {
	y := []float64{1, 1, -1, -1}
	w, _, _ := gradAndWeightForSingleColumn(t, y, 0.1, 1.0, 1.0, math.Inf(1))
	if w != 0 {
		t.Fatalf("S1: w[0] = %v, want 0", w)
	}
}

// TestWeightUpdateS2ShrinkageActivates is scenario S2: y now correlates
// positively with the column, g+ < 0, so w[0] becomes strictly
// positive and the trust region grows to at least twice the step.
func TestWeightUpdateS2ShrinkageActivates(t *testing.T) {
	y := []float64{1, 1, 1, -1}
	deltaInit := 1.0
	w, delta, _ := gradAndWeightForSingleColumn(t, y, 0.1, 1.0, deltaInit, math.Inf(1))
	if w <= 0 {
		t.Fatalf("S2: w[0] = %v, want strictly positive", w)
	}
	step := w // w started at 0, so the applied step equals the new weight
	if delta < 2*math.Abs(step)-1e-12 {
		t.Fatalf("S2: delta = %v, want >= 2*|step|=%v", delta, 2*math.Abs(step))
	}
}

// TestWeightUpdateTrustRegionBound is spec §8 property 4 / §3 I3: every
// applied step must be clamped within the pre-step trust region, and
// the post-step trust region must be at least twice the applied step.
func TestWeightUpdateTrustRegionBound(t *testing.T) {
	for _, deltaBefore := range []float64{0.01, 0.5, 1, 10} {
		w := []float64{0}
		delta := []float64{deltaBefore}
		active := []bool{true}
		g := []float64{-100} // a huge gradient that would overshoot the trust region
		u := []float64{1}
		UpdateWeight(w, delta, active, g, u, 1.0, 0.1, 0, math.Inf(1))

		if math.Abs(w[0]) > deltaBefore+1e-9 {
			t.Fatalf("deltaBefore=%v: |step|=%v exceeds the pre-step trust region", deltaBefore, math.Abs(w[0]))
		}
		if delta[0] < 2*math.Abs(w[0])-1e-9 {
			t.Fatalf("deltaBefore=%v: post-step delta=%v < 2*|step|=%v", deltaBefore, delta[0], 2*math.Abs(w[0]))
		}
	}
}

// TestWeightUpdateS3KKTFilterFires is scenario S3: when g+ > theta and
// g- < -theta at w==0, the KKT filter clears the active bit and writes
// the NaN sentinel, which must round-trip as 0 on any worker that later
// reconciles it (spec §8 property 1).
func TestWeightUpdateS3KKTFilterFires(t *testing.T) {
	w := []float64{0}
	delta := []float64{1}
	active := []bool{true}
	g := []float64{0} // g+ = lambda > theta, g- = -lambda < -theta
	lambda := 0.05
	kktTheta := 0.01

	UpdateWeight(w, delta, active, g, []float64{1}, 1.0, lambda, 0, kktTheta)

	if active[0] {
		t.Fatalf("S3: active_set[0] should have cleared")
	}
	if !sentinel.Inactive(w[0]) {
		t.Fatalf("S3: w[0] = %v, want the NaN sentinel", w[0])
	}

	// Worker-side round trip: ReconcileWeights must see the sentinel
	// and zero its cached weight, clearing its own active-set mirror.
	wLocal := []float64{7} // stale nonzero cached value
	workerDelta := []float64{1}
	workerActive := []bool{true}
	deltaW := ReconcileWeights(wLocal, workerDelta, workerActive, 0, w)
	if workerActive[0] {
		t.Fatalf("S3: worker active_set[0] should have cleared after reconciling the sentinel")
	}
	if wLocal[0] != 0 {
		t.Fatalf("S3: worker wLocal[0] = %v, want 0", wLocal[0])
	}
	if deltaW[0] != 0 {
		t.Fatalf("S3: deltaW[0] = %v, want 0 so the dual is left unchanged", deltaW[0])
	}
}

func TestNNZAndPenaltyExcludesZeroAndInactive(t *testing.T) {
	w := []float64{0, 2, -3, sentinel.Mark()}
	nnz, objv := NNZAndPenalty(w, 0.5)
	if nnz != 2 {
		t.Fatalf("nnz = %d, want 2", nnz)
	}
	want := 0.5 * (2 + 3)
	if math.Abs(objv-want) > 1e-12 {
		t.Fatalf("objv = %v, want %v", objv, want)
	}
}
