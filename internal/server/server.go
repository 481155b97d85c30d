// Package server implements the server role's UPDATE_MODEL and
// EVALUATE_PROGRESS handlers (spec §4.3, §4.6, §4.7).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/obs"
	"github.com/swarmguard/bcdsolver/internal/paramstore"
	"github.com/swarmguard/bcdsolver/internal/progress"
	"github.com/swarmguard/bcdsolver/internal/rpc"
	"github.com/swarmguard/bcdsolver/internal/taskpool"
)

// Server owns one contiguous range of the global weight vector and
// aggregates every worker's contribution to it each block (spec §4.3).
type Server struct {
	ID    string
	Store *paramstore.Store

	Eta, Lambda  float64
	NumWorkers   int
	Transport    rpc.Transport
	Metrics      obs.ServerMetrics
	Logger       *slog.Logger

	mu        sync.Mutex
	kktTheta  float64
	violation float64
}

func New(id string, store *paramstore.Store, eta, lambda float64, numWorkers int, transport rpc.Transport, metrics obs.ServerMetrics, logger *slog.Logger) *Server {
	return &Server{ID: id, Store: store, Eta: eta, Lambda: lambda, NumWorkers: numWorkers, Transport: transport, Metrics: metrics, Logger: logger}
}

// HandleUpdateModel runs one block's server-side round: wait for every
// worker's gradient contribution to the range this server owns,
// aggregate, apply the KKT-filtered weight update, and publish the
// result for workers to pull (spec §4.3).
func (s *Server) HandleUpdateModel(ctx context.Context, blk block.Spec, round taskpool.BlockRound, kktTheta *float64, resetFilter bool) error {
	// KKTθ install, violation reset, and active-set reset happen for
	// every server regardless of whether this block intersects its
	// key-range (original: block_cd_l1lr.cc installs these for every
	// node before the per-node range-intersection check). A server
	// whose range excludes block 0 still owns the iteration's KKTθ and
	// must not filter on a stale Go zero-value threshold.
	s.mu.Lock()
	if kktTheta != nil {
		s.kktTheta = *kktTheta
		s.violation = 0
	}
	theta := s.kktTheta
	s.mu.Unlock()
	if resetFilter {
		s.Store.ResetActiveSet()
	}

	seg, ok := s.Store.Intersect(blk.KeyRange)
	if !ok {
		return nil
	}

	waitStart := time.Now()
	pushes, err := s.Transport.AwaitPushes(ctx, s.ID, blk.ID, round.TPush, s.NumWorkers)
	if s.Metrics.WaitSeconds != nil {
		s.Metrics.WaitSeconds.Record(ctx, time.Since(waitStart).Seconds())
	}
	if err != nil {
		return err
	}

	n := seg.Len()
	g := make([]float64, n)
	u := make([]float64, n)
	for _, push := range pushes {
		if push.KeyRange != seg {
			return fmt.Errorf("server %s: push key-range %v does not match owned segment %v for block %d", s.ID, push.KeyRange, seg, blk.ID)
		}
		for i := range g {
			g[i] += push.G[i]
			u[i] += push.U[i]
		}
	}

	s.mu.Lock()
	violation := s.violation
	s.mu.Unlock()
	result, snapshot := s.Store.ApplyUpdate(seg, g, u, s.Eta, s.Lambda, violation, theta)
	s.mu.Lock()
	s.violation = result.Violation
	s.mu.Unlock()

	if s.Metrics.ActiveSetSize != nil {
		s.Metrics.ActiveSetSize.Record(ctx, int64(s.Store.ActiveCount()))
	}

	return s.Transport.Finish(ctx, s.ID, blk.ID, round.TPush, rpc.WeightSegment{KeyRange: seg, Values: snapshot})
}

// EvaluateProgress reports this server's contribution to the
// iteration's progress (spec §4.7). It leaves the violation
// accumulator as it is; the next KKTθ install in HandleUpdateModel
// resets it.
func (s *Server) EvaluateProgress() progress.ServerReport {
	nnz, objv := s.Store.NNZAndPenalty(s.Lambda)
	s.mu.Lock()
	violation := s.violation
	s.mu.Unlock()
	return progress.ServerReport{
		ServerID:    s.ID,
		NNZ:         nnz,
		PenaltyObjv: objv,
		Violation:   violation,
		ActiveCount: s.Store.ActiveCount(),
	}
}
