package obs

import "go.opentelemetry.io/otel/metric"

// SchedulerMetrics holds the scheduler's named instruments (spec
// SPEC_FULL.md §4.1).
type SchedulerMetrics struct {
	Iterations       metric.Int64Counter
	BlocksDispatched metric.Int64Counter
	ResetFilters     metric.Int64Counter
	KKTTheta         metric.Float64Gauge
}

func NewSchedulerMetrics(meter metric.Meter) SchedulerMetrics {
	iterations, _ := meter.Int64Counter("bcd_scheduler_iterations_total")
	blocks, _ := meter.Int64Counter("bcd_scheduler_blocks_dispatched_total")
	resets, _ := meter.Int64Counter("bcd_scheduler_reset_filter_total")
	theta, _ := meter.Float64Gauge("bcd_scheduler_kkt_theta")
	return SchedulerMetrics{Iterations: iterations, BlocksDispatched: blocks, ResetFilters: resets, KKTTheta: theta}
}

// WorkerMetrics holds a worker's named instruments (spec SPEC_FULL.md §4.2).
type WorkerMetrics struct {
	Pushes      metric.Int64Counter
	Pulls       metric.Int64Counter
	DualUpdates metric.Float64Histogram
}

func NewWorkerMetrics(meter metric.Meter) WorkerMetrics {
	pushes, _ := meter.Int64Counter("bcd_worker_push_total")
	pulls, _ := meter.Int64Counter("bcd_worker_pull_total")
	dual, _ := meter.Float64Histogram("bcd_worker_dual_update_seconds")
	return WorkerMetrics{Pushes: pushes, Pulls: pulls, DualUpdates: dual}
}

// ServerMetrics holds a server's named instruments (spec SPEC_FULL.md §4.3).
type ServerMetrics struct {
	WaitSeconds    metric.Float64Histogram
	ActiveSetSize  metric.Int64Gauge
}

func NewServerMetrics(meter metric.Meter) ServerMetrics {
	wait, _ := meter.Float64Histogram("bcd_server_wait_seconds")
	active, _ := meter.Int64Gauge("bcd_server_active_set_size")
	return ServerMetrics{WaitSeconds: wait, ActiveSetSize: active}
}
