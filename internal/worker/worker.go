// Package worker implements the worker role's UPDATE_MODEL and
// EVALUATE_PROGRESS handlers (spec §4.2, §4.5, §4.7).
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/kernel"
	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/obs"
	"github.com/swarmguard/bcdsolver/internal/progress"
	"github.com/swarmguard/bcdsolver/internal/rpc"
	"github.com/swarmguard/bcdsolver/internal/sentinel"
	"github.com/swarmguard/bcdsolver/internal/taskpool"
	"github.com/swarmguard/bcdsolver/internal/threadpool"
)

// Worker holds one worker's row-partitioned local data and its mirror
// of the global weight/trust-region/active-set state (spec §3 data
// model: "Workers hold a local row-partition of X ... and a full
// mirror of w, delta, active_set").
type Worker struct {
	ID  string
	Mat *matrix.Matrix
	Y   []float64
	Dual []float64

	WLocal    []float64
	Delta     []float64
	ActiveSet []bool

	Topology  block.Topology
	Transport rpc.Transport
	Pool      *threadpool.Pool
	Metrics   obs.WorkerMetrics
	Logger    *slog.Logger

	mu       sync.Mutex
	kktTheta float64
	busyTime time.Duration
}

// New builds a worker over its row-partitioned matrix, with Delta
// mirrors initialized to deltaInit (spec §4.1 RunConfig
// delta_init_value) and dual initialized per §4.4's d_i = exp(y_i *
// x_i^T w0); callers with w0 == 0 may pass an all-ones dual directly.
func New(id string, mat *matrix.Matrix, y, dual []float64, p int, deltaInit float64, topo block.Topology, transport rpc.Transport, pool *threadpool.Pool, metrics obs.WorkerMetrics, logger *slog.Logger) *Worker {
	delta := make([]float64, p)
	active := make([]bool, p)
	for i := range delta {
		delta[i] = deltaInit
		active[i] = true
	}
	return &Worker{
		ID: id, Mat: mat, Y: y, Dual: dual,
		WLocal: make([]float64, p), Delta: delta, ActiveSet: active,
		Topology: topo, Transport: transport, Pool: pool, Metrics: metrics, Logger: logger,
	}
}

// HandleUpdateModel runs the full push/pull round for one block (spec
// §4.2): compute gradients over the block's range, push contributions
// to the servers that own pieces of it, then pull each server's
// updated segment and fold it into the dual variables.
func (w *Worker) HandleUpdateModel(ctx context.Context, blk block.Spec, round taskpool.BlockRound, kktTheta *float64, resetFilter bool) error {
	w.mu.Lock()
	if kktTheta != nil {
		w.kktTheta = *kktTheta
	}
	if resetFilter {
		w.resetLocked()
	}
	start := time.Now()
	g, u := kernel.ComputeGradients(w.Pool, w.Mat, blk.KeyRange.Start, blk.KeyRange.End, w.Y, w.Dual, w.ActiveSet, w.Delta)
	w.busyTime += time.Since(start)
	w.mu.Unlock()

	assignments := w.Topology.Intersecting(blk.KeyRange)
	for _, srv := range assignments {
		seg, ok := srv.Range.Intersect(blk.KeyRange)
		if !ok {
			continue
		}
		lo := seg.Start - blk.KeyRange.Start
		hi := seg.End - blk.KeyRange.Start
		msg := rpc.PushMsg{WorkerID: w.ID, BlockID: blk.ID, KeyRange: seg, G: g[lo:hi], U: u[lo:hi]}
		if err := w.Transport.Push(ctx, srv.ServerID, msg, round.TPush); err != nil {
			return err
		}
	}
	if w.Metrics.Pushes != nil {
		w.Metrics.Pushes.Add(ctx, 1)
	}

	for _, srv := range assignments {
		seg, err := w.Transport.Pull(ctx, srv.ServerID, blk.ID, round.TPush)
		if err != nil {
			return err
		}
		start := time.Now()
		w.mu.Lock()
		deltaW := kernel.ReconcileWeights(w.WLocal, w.Delta, w.ActiveSet, seg.KeyRange.Start, seg.Values)
		kernel.ApplyDual(w.Pool, w.Mat, seg.KeyRange.Start, deltaW, w.ActiveSet, w.Y, w.Dual)
		w.mu.Unlock()
		if w.Metrics.DualUpdates != nil {
			w.Metrics.DualUpdates.Record(ctx, time.Since(start).Seconds())
		}
	}
	if w.Metrics.Pulls != nil {
		w.Metrics.Pulls.Add(ctx, 1)
	}
	return nil
}

// resetLocked flips the worker's active-set mirror back to all-true
// and clears any NaN sentinel left on a previously frozen coordinate,
// mirroring paramstore.Store.ResetActiveSet on the authoritative side.
func (w *Worker) resetLocked() {
	for i := range w.ActiveSet {
		w.ActiveSet[i] = true
		if sentinel.Inactive(w.WLocal[i]) {
			w.WLocal[i] = 0
		}
	}
}

// EvaluateProgress reports this worker's contribution to the
// iteration's objective (spec §4.7: sum of log(1+1/d_i) over local
// rows) and resets its busy-time accumulator.
func (w *Worker) EvaluateProgress() progress.WorkerReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	var objv float64
	for _, d := range w.Dual {
		objv += kernel.LogLoss(d)
	}
	busy := w.busyTime
	w.busyTime = 0
	return progress.WorkerReport{WorkerID: w.ID, Objective: objv, BusyTime: busy}
}
