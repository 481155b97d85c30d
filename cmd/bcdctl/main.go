// Command bcdctl is the solver's CLI driver: it loads a RunConfig,
// wires a single-process simulation (optionally carrying its push/pull
// traffic over a dialed NATS connection), runs the scheduler to
// completion, and can list a run's
// persisted progress log. Subcommand dispatch is a plain switch over
// os.Args rather than a CLI framework: nothing in the reference stack
// this repo is grounded on pulls in one (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/swarmguard/bcdsolver/internal/config"
	"github.com/swarmguard/bcdsolver/internal/obs"
	"github.com/swarmguard/bcdsolver/internal/rpc"
	"github.com/swarmguard/bcdsolver/internal/sim"
	"github.com/swarmguard/bcdsolver/internal/store"
)

const serviceName = "bcdsolver"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "progress":
		progressCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bcdctl <run|progress> [flags]")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the RunConfig YAML file")
	runID := fs.String("run-id", "default", "identifier this run's progress log is stored under")
	numWorkers := fs.Int("num-workers", 4, "number of simulated workers")
	rows := fs.Int("rows", 2000, "synthetic dataset rows per worker")
	cols := fs.Int("cols", 500, "synthetic dataset columns (global key space size)")
	numBlocks := fs.Int("num-blocks", 10, "number of feature blocks")
	numServers := fs.Int("num-servers", 2, "number of simulated servers")
	seed := fs.Int64("seed", 1, "synthetic dataset RNG seed")
	transportKind := fs.String("transport", "local", "push/pull wire: \"local\" (in-process) or \"nats\" (dials -config's nats_url)")
	fs.Parse(args)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "run: -config is required")
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := obs.InitLogging("scheduler", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := obs.InitTracing(ctx, serviceName, cfg.OTelEndpoint)
	shutdownMetrics := obs.InitMetrics(ctx, serviceName, cfg.OTelEndpoint)
	defer func() {
		obs.Flush(ctx, shutdownTrace)
		obs.Flush(ctx, shutdownMetrics)
	}()

	db, err := store.Open(cfg.ProgressDBPath, otel.Meter(serviceName))
	if err != nil {
		logger.Error("open progress store failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var transport rpc.Transport
	if *transportKind == "nats" {
		nt, nc, err := dialNATSTransport(cfg.NATSURL)
		if err != nil {
			logger.Error("nats transport dial failed", "error", err)
			os.Exit(1)
		}
		defer nt.Close()
		defer nc.Close()
		transport = nt
	} else if *transportKind != "local" {
		fmt.Fprintf(os.Stderr, "run: unknown -transport %q (want local|nats)\n", *transportKind)
		os.Exit(2)
	}

	workers := syntheticDatasets(*numWorkers, *rows, *cols, *seed)
	result, err := sim.Run(ctx, sim.RunInput{
		Cfg:        cfg,
		P:          *cols,
		NumBlocks:  *numBlocks,
		NumServers: *numServers,
		Workers:    workers,
		Logger:     logger,
		Transport:  transport,
	})
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	for _, rec := range result.History {
		if err := db.Append(ctx, *runID, rec); err != nil {
			logger.Error("persist progress record failed", "iteration", rec.Iteration, "error", err)
		}
	}

	logger.Info("run finished", "outcome", result.Outcome, "iterations", len(result.History))
}

// dialNATSTransport connects to url with bounded retry (grounded on
// the swarmguard fleet's control-plane dialWithRetry, adapted here to
// rpc.Retry[T]) and wraps the connection in an rpc.NATSTransport so
// every worker/server push and pull for this run crosses a real NATS
// subject instead of an in-process channel.
func dialNATSTransport(url string) (*rpc.NATSTransport, *nats.Conn, error) {
	nc, err := rpc.Retry(context.Background(), 5, 500*time.Millisecond, func() (*nats.Conn, error) {
		return nats.Connect(url)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial nats at %s: %w", url, err)
	}
	nt, err := rpc.NewNATSTransport(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("subscribe nats transport: %w", err)
	}
	return nt, nc, nil
}

func progressCmd(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the progress BoltDB file")
	runID := fs.String("run-id", "default", "run id to list")
	fs.Parse(args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "progress: -db is required")
		os.Exit(2)
	}

	db, err := store.Open(*dbPath, otel.Meter(serviceName))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := db.List(context.Background(), *runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, rec := range records {
		fmt.Printf("iter=%d objective=%.6f nnz=%d active=%d violation=%.6f busy=%s\n",
			rec.Iteration, rec.Objective, rec.NNZ, rec.ActiveCount, rec.Violation, rec.BusyTime)
	}
}
