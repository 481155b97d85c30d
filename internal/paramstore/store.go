// Package paramstore holds a server's authoritative slice of the
// global weight vector (spec §6.2 Parameter store): w, the
// trust-region radius delta, and the KKT active-set bitmap for the
// key-range this server owns.
package paramstore

import (
	"sync"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/kernel"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
)

// Store is one server's authoritative segment of the model.
type Store struct {
	mu sync.Mutex

	Range     block.KeyRange
	W         []float64
	Delta     []float64
	ActiveSet []bool
}

func New(r block.KeyRange, deltaInit float64) *Store {
	n := r.Len()
	delta := make([]float64, n)
	active := make([]bool, n)
	for i := range delta {
		delta[i] = deltaInit
		active[i] = true
	}
	return &Store{Range: r, W: make([]float64, n), Delta: delta, ActiveSet: active}
}

// Intersect returns the overlap of r with the range this store owns.
func (s *Store) Intersect(r block.KeyRange) (block.KeyRange, bool) {
	return s.Range.Intersect(r)
}

func (s *Store) localSliceLocked(r block.KeyRange) (w, delta []float64, active []bool) {
	lo := r.Start - s.Range.Start
	hi := r.End - s.Range.Start
	return s.W[lo:hi], s.Delta[lo:hi], s.ActiveSet[lo:hi]
}

// Snapshot copies the current weight values for r (which must be
// contained in the store's range) for a Transport.Finish payload.
func (s *Store) Snapshot(r block.KeyRange) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, _, _ := s.localSliceLocked(r)
	out := make([]float64, len(w))
	copy(out, w)
	return out
}

// ApplyUpdate runs the KKT-filtered coordinate update for segment r
// against aggregated gradients g/u (spec §4.3 step 3, §4.6), returning
// the new violation ceiling and a snapshot of the updated weights.
func (s *Store) ApplyUpdate(r block.KeyRange, g, u []float64, eta, lambda, violation, kktTheta float64) (kernel.WeightUpdateResult, []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, delta, active := s.localSliceLocked(r)
	result := kernel.UpdateWeight(w, delta, active, g, u, eta, lambda, violation, kktTheta)
	snap := make([]float64, len(w))
	copy(snap, w)
	return result, snap
}

// ResetActiveSet flips every coordinate back to active and clears any
// NaN sentinel left by a prior freeze, so the next block's gradient
// pass re-examines every key. Flipping the bitset alone and leaving w
// as NaN would silently break the w==0 KKT branch on the very next
// pass, since that branch's first check is w[k]==0; restoring w to 0
// here is what makes the re-examination meaningful.
func (s *Store) ResetActiveSet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ActiveSet {
		s.ActiveSet[i] = true
		if sentinel.Inactive(s.W[i]) {
			s.W[i] = 0
		}
	}
}

// NNZAndPenalty reports this store's contribution to the iteration's
// nonzero count and L1 penalty (spec §4.7).
func (s *Store) NNZAndPenalty(lambda float64) (nnz int, objv float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kernel.NNZAndPenalty(s.W, lambda)
}

// ActiveCount returns the number of coordinates still in the active
// set, for the server's active_set_size progress field.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.ActiveSet {
		if b {
			n++
		}
	}
	return n
}
