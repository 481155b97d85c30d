// Package sim wires the scheduler, worker and server roles together in
// a single process: the default mode for `bcdctl run` and for tests.
// The roles still only ever talk to each other through rpc.Transport,
// so the same topology can run push/pull either in-process
// (rpc.LocalTransport, the default) or over a real NATS connection
// (rpc.NATSTransport) without any other change, matching spec §5
// "parallel multi-process... or in-process" collapsed here to one
// process for the reference driver, with the wire path still real.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/swarmguard/bcdsolver/internal/block"
	"github.com/swarmguard/bcdsolver/internal/config"
	"github.com/swarmguard/bcdsolver/internal/matrix"
	"github.com/swarmguard/bcdsolver/internal/obs"
	"github.com/swarmguard/bcdsolver/internal/paramstore"
	"github.com/swarmguard/bcdsolver/internal/progress"
	"github.com/swarmguard/bcdsolver/internal/rpc"
	"github.com/swarmguard/bcdsolver/internal/scheduler"
	"github.com/swarmguard/bcdsolver/internal/server"
	"github.com/swarmguard/bcdsolver/internal/taskpool"
	"github.com/swarmguard/bcdsolver/internal/threadpool"
	"github.com/swarmguard/bcdsolver/internal/worker"
)

// Dataset is one worker's row-partitioned local data.
type Dataset struct {
	Mat *matrix.Matrix // Cols must equal P for every dataset in a run
	Y   []float64
}

// RunInput fully specifies a single-process run.
type RunInput struct {
	Cfg        *config.RunConfig
	P          int // total feature count (global key space size)
	NumBlocks  int
	NumServers int
	Workers    []Dataset
	Logger     *slog.Logger

	// Transport is the push/pull wire the worker and server roles run
	// over. Nil uses an in-process rpc.LocalTransport; pass an
	// *rpc.NATSTransport (internal/rpc) to have the same roles
	// exchange gradients/weights over a real NATS connection.
	Transport rpc.Transport
}

// Result is what a run returns for the CLI/store to report.
type Result struct {
	Outcome scheduler.Outcome
	History []progress.Record
}

// Run builds the in-process topology described by in and executes the
// scheduler loop to completion.
func Run(ctx context.Context, in RunInput) (Result, error) {
	if len(in.Workers) == 0 {
		return Result{}, fmt.Errorf("sim: at least one worker dataset is required")
	}
	for i, d := range in.Workers {
		if d.Mat.Cols != in.P {
			return Result{}, fmt.Errorf("sim: worker %d matrix has %d columns, want P=%d", i, d.Mat.Cols, in.P)
		}
	}

	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter("bcdsolver")
	schedMetrics := obs.NewSchedulerMetrics(meter)
	workerMetrics := obs.NewWorkerMetrics(meter)
	serverMetrics := obs.NewServerMetrics(meter)

	transport := in.Transport
	if transport == nil {
		transport = rpc.NewLocalTransport()
	}
	topo := block.EvenTopology(in.P, in.NumServers)
	blocks := block.EvenBlocks(in.P, in.NumBlocks)
	pool := threadpool.New(in.Cfg.NumThreads)

	workers := make([]*worker.Worker, len(in.Workers))
	m := 0
	for i, d := range in.Workers {
		dual := make([]float64, d.Mat.Rows)
		for j := range dual {
			dual[j] = 1 // exp(y_i * x_i^T w0) with w0 == 0
		}
		id := fmt.Sprintf("worker-%d", i)
		workers[i] = worker.New(id, d.Mat, d.Y, dual, in.P, in.Cfg.BCDL1LR.DeltaInitValue, topo, transport, pool, workerMetrics, logger.With("worker", id))
		m += d.Mat.Rows
	}

	servers := make([]*server.Server, len(topo.Assignments))
	for i, a := range topo.Assignments {
		store := paramstore.New(a.Range, in.Cfg.BCDL1LR.DeltaInitValue)
		servers[i] = server.New(a.ServerID, store, in.Cfg.LearningRate.Eta, in.Cfg.Penalty.Lambda, len(workers), transport, serverMetrics, logger.With("server", a.ServerID))
	}

	sch := &scheduler.Scheduler{
		Cfg:     in.Cfg,
		Pool:    taskpool.New(),
		Blocks:  blocks,
		M:       m,
		Metrics: schedMetrics,
		Logger:  logger.With("role", "scheduler"),
	}
	for _, w := range workers {
		w := w
		sch.UpdateWorkers = append(sch.UpdateWorkers, w.HandleUpdateModel)
		sch.EvalWorkers = append(sch.EvalWorkers, w.EvaluateProgress)
	}
	for _, s := range servers {
		s := s
		sch.UpdateServers = append(sch.UpdateServers, s.HandleUpdateModel)
		sch.EvalServers = append(sch.EvalServers, s.EvaluateProgress)
	}

	outcome, err := sch.Run(ctx)
	pool.Close()
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: outcome, History: sch.History}, nil
}
