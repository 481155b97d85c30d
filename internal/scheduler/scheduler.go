// Package scheduler drives the block coordinate descent run loop
// (spec §4.1): for each pass over the feature blocks it dispatches
// UPDATE_MODEL tasks under bounded staleness, then an EVALUATE_PROGRESS
// barrier, recomputes the KKT threshold, and decides whether to keep
// filtering, sweep the full set once more, or stop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/config"
	"github.com/swarmguard/bcdsolver/internal/obs"
	"github.com/swarmguard/bcdsolver/internal/progress"
	"github.com/swarmguard/bcdsolver/internal/taskpool"
)

// Outcome is the terminal reason a run stopped (spec §7 propagation
// policy: "the scheduler surfaces iteration outcomes and a terminal
// reason").
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeMaxPasses Outcome = "max_passes"
)

// UpdateModelFunc, EvaluateWorkerFunc and EvaluateServerFunc are the
// narrow callbacks the scheduler needs to dispatch one block, or one
// progress round, to every worker and every server; the sim package
// wires these to the concrete worker.Worker/server.Server roles,
// whichever rpc.Transport those roles run over.
type (
	UpdateModelFunc    func(ctx context.Context, blk block.Spec, round taskpool.BlockRound, kktTheta *float64, resetFilter bool) error
	EvaluateWorkerFunc func() progress.WorkerReport
	EvaluateServerFunc func() progress.ServerReport
)

// Scheduler runs runIteration() against a fixed roster of workers and
// servers addressed only through the callbacks above.
type Scheduler struct {
	Cfg     *config.RunConfig
	Pool    *taskpool.Pool
	Blocks  []block.Spec
	M       int // total local rows across all workers, for KKTθ recomputation (violation/m)
	Metrics obs.SchedulerMetrics
	Logger  *slog.Logger

	UpdateWorkers []UpdateModelFunc
	UpdateServers []UpdateModelFunc
	EvalWorkers   []EvaluateWorkerFunc
	EvalServers   []EvaluateServerFunc

	History []progress.Record
}

// Run executes runIteration() to completion (spec §4.1).
func (s *Scheduler) Run(ctx context.Context) (Outcome, error) {
	if err := s.Cfg.Validate(); err != nil {
		return "", fmt.Errorf("configuration-fatal: %w", err)
	}

	kktTheta := math.Inf(1)
	resetFilter := false
	tau := s.Cfg.BlockSolver.MaxBlockDelay
	epsilon := s.Cfg.BlockSolver.Epsilon
	prevObjv := 0.0

	order := make([]block.Spec, len(s.Blocks))
	copy(order, s.Blocks)

	for iter := 0; iter < s.Cfg.BlockSolver.MaxPassOfData; iter++ {
		iterOrder := s.buildOrder(order, iter)

		// Each block's dispatch runs in its own goroutine once admitted
		// by the pool's bounded-staleness gate: Submit blocks here only
		// long enough to enforce τ, so up to τ blocks run concurrently
		// (spec §5 "up to τ concurrent blocks may be in flight").
		var wg sync.WaitGroup
		var errMu sync.Mutex
		var firstErr error
		for i, blk := range iterOrder {
			isFirstTask := i == 0
			var waitTime int64
			t := s.Pool.Time()
			if iter == 0 && i < len(s.Cfg.PriorBlockOrder) {
				waitTime = t
			} else {
				waitTime = t - tau
			}

			var kktPtr *float64
			reset := false
			if isFirstTask {
				theta := kktTheta
				kktPtr = &theta
				reset = resetFilter
			}

			assigned := s.Pool.Submit(waitTime)
			round := taskpool.NewBlockRound(assigned)
			if s.Metrics.BlocksDispatched != nil {
				s.Metrics.BlocksDispatched.Add(ctx, 1)
			}
			if reset && s.Metrics.ResetFilters != nil {
				s.Metrics.ResetFilters.Add(ctx, 1)
			}

			wg.Add(1)
			go func(blk block.Spec, round taskpool.BlockRound, assigned int64, kktPtr *float64, reset bool) {
				defer wg.Done()
				defer s.Pool.FinishIncomingTask(assigned)
				if err := s.dispatchBlock(ctx, blk, round, kktPtr, reset); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
			}(blk, round, assigned, kktPtr, reset)
		}
		wg.Wait()
		if firstErr != nil {
			return "", firstErr
		}

		waitTime := s.Pool.Time() - tau
		var rec progress.Record
		err := s.Pool.SubmitAndWait(waitTime, func(t int64) error {
			rec = s.evaluateProgress(iter)
			return nil
		})
		if err != nil {
			return "", err
		}
		s.History = append(s.History, rec)

		kktTheta = rec.Violation / float64(s.M) * s.Cfg.BCDL1LR.KKTFilterThresholdRatio
		if s.Metrics.KKTTheta != nil {
			s.Metrics.KKTTheta.Record(ctx, kktTheta)
		}
		if s.Metrics.Iterations != nil {
			s.Metrics.Iterations.Add(ctx, 1)
		}

		rel := progress.RelativeObjv(rec.Objective, prevObjv)
		prevObjv = rec.Objective

		if s.Logger != nil {
			s.Logger.Info("iteration complete", "iter", iter, "objective", rec.Objective, "nnz", rec.NNZ, "active", rec.ActiveCount, "violation", rec.Violation, "rel_objv", rel, "reset_filter", resetFilter)
		}

		if rel > 0 && rel <= epsilon {
			if resetFilter {
				return OutcomeConverged, nil
			}
			resetFilter = true
		} else {
			resetFilter = false
		}
	}

	return OutcomeMaxPasses, nil
}

func (s *Scheduler) buildOrder(base []block.Spec, iter int) []block.Spec {
	order := make([]block.Spec, len(base))
	copy(order, base)
	if s.Cfg.BlockSolver.RandomFeatureBlockOrder {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if iter == 0 && len(s.Cfg.PriorBlockOrder) > 0 {
		prior := make([]block.Spec, 0, len(s.Cfg.PriorBlockOrder))
		rest := make([]block.Spec, 0, len(order))
		priorIDs := make(map[int]bool, len(s.Cfg.PriorBlockOrder))
		for _, id := range s.Cfg.PriorBlockOrder {
			priorIDs[id] = true
		}
		byID := make(map[int]block.Spec, len(order))
		for _, b := range order {
			byID[b.ID] = b
		}
		for _, id := range s.Cfg.PriorBlockOrder {
			prior = append(prior, byID[id])
		}
		for _, b := range order {
			if !priorIDs[b.ID] {
				rest = append(rest, b)
			}
		}
		order = append(prior, rest...)
	}
	return order
}

// dispatchBlock runs every worker's and server's UPDATE_MODEL handler
// concurrently: a worker's push/pull round and a server's wait/finish
// round are mutually blocking halves of the same rendezvous (spec
// §4.2-§4.3), so they cannot be sequenced one role at a time.
func (s *Scheduler) dispatchBlock(ctx context.Context, blk block.Spec, round taskpool.BlockRound, kktTheta *float64, resetFilter bool) error {
	handlers := make([]UpdateModelFunc, 0, len(s.UpdateWorkers)+len(s.UpdateServers))
	handlers = append(handlers, s.UpdateWorkers...)
	handlers = append(handlers, s.UpdateServers...)

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for i, fn := range handlers {
		go func(i int, fn UpdateModelFunc) {
			defer wg.Done()
			errs[i] = fn(ctx, blk, round, kktTheta, resetFilter)
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) evaluateProgress(iter int) progress.Record {
	workers := make([]progress.WorkerReport, 0, len(s.EvalWorkers))
	for _, fn := range s.EvalWorkers {
		workers = append(workers, fn())
	}
	servers := make([]progress.ServerReport, 0, len(s.EvalServers))
	for _, fn := range s.EvalServers {
		servers = append(servers, fn())
	}
	return progress.Merge(iter, workers, servers)
}
