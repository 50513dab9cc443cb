package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notify-dispatch/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the maintenance worker.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// worker-specific metrics for sweep execution tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_sweep_runs_total: Total sweep runs by sweep name and status
//   - worker_sweep_duration_seconds: Duration histogram of sweep execution
//   - worker_sweep_records_total: Total records affected per sweep
//   - worker_sweep_last_success_timestamp: Unix timestamp of last successful run per sweep
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
//	// Record a sweep execution
//	start := time.Now()
//	n, err := store.FailStale(ctx, lease, reason)
//	if err != nil {
//	    metrics.RecordSweepRun("stale", "failure")
//	} else {
//	    metrics.RecordSweepRun("stale", "success")
//	    metrics.RecordRecordsSwept("stale", n)
//	    metrics.RecordLastSuccess("stale")
//	}
//	metrics.RecordSweepDuration("stale", time.Since(start).Seconds())
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// SweepRunsTotal counts the total number of sweep runs.
	// Type: Counter
	// Labels: sweep (stale, retention, gauges), status (success, failure)
	// Usage: Increment after each sweep run based on success/failure
	SweepRunsTotal *prometheus.CounterVec

	// SweepDurationSeconds measures the duration of sweep execution.
	// Type: Histogram
	// Labels: sweep
	// Buckets: 10ms-30s (sweeps are single SQL statements, usually fast)
	// Usage: Observe duration at the end of each sweep run
	SweepDurationSeconds *prometheus.HistogramVec

	// SweepRecordsTotal counts the records affected by each sweep:
	// force-failed for the stale sweep, purged for the retention sweep.
	// Type: Counter
	// Labels: sweep
	// Usage: Add the affected row count after each successful sweep
	SweepRecordsTotal *prometheus.CounterVec

	// SweepLastSuccessTimestamp records the Unix timestamp of the last
	// successful run per sweep. A stalled timestamp is the alerting signal
	// for a wedged worker.
	// Type: Gauge
	// Labels: sweep
	SweepLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics initialized.
// Metrics are created but not registered with Prometheus. Call MustRegister() to register.
//
// Returns:
//   - *WorkerMetrics: Initialized metrics ready for registration
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_sweep_runs_total",
			Help: "Total number of sweep runs by sweep name and status (success/failure)",
		}, []string{"sweep", "status"}),

		SweepDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_sweep_duration_seconds",
			Help:    "Duration of sweep execution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30}, // 10ms to 30s
		}, []string{"sweep"}),

		SweepRecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_sweep_records_total",
			Help: "Total number of records affected across all sweep runs",
		}, []string{"sweep"}),

		SweepLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_sweep_last_success_timestamp",
			Help: "Unix timestamp of the last successful sweep run",
		}, []string{"sweep"}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
//
// This method exists to maintain consistency with the expected metrics initialization pattern:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
// Even though registration happens automatically, this explicit call makes the
// initialization intent clear and maintains compatibility with future changes.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordSweepRun increments the sweep run counter for the given sweep and status.
// Status should be either "success" or "failure".
//
// Parameters:
//   - sweep: Sweep name ("stale", "retention", "gauges")
//   - status: Sweep execution status ("success" or "failure")
func (m *WorkerMetrics) RecordSweepRun(sweep, status string) {
	m.SweepRunsTotal.WithLabelValues(sweep, status).Inc()
}

// RecordSweepDuration observes the duration of a sweep execution.
// Duration should be in seconds.
//
// Parameters:
//   - sweep: Sweep name
//   - seconds: Sweep execution duration in seconds
func (m *WorkerMetrics) RecordSweepDuration(sweep string, seconds float64) {
	m.SweepDurationSeconds.WithLabelValues(sweep).Observe(seconds)
}

// RecordRecordsSwept adds the number of records affected to the sweep's total.
//
// Parameters:
//   - sweep: Sweep name
//   - count: Number of records affected in this sweep run
func (m *WorkerMetrics) RecordRecordsSwept(sweep string, count int64) {
	m.SweepRecordsTotal.WithLabelValues(sweep).Add(float64(count))
}

// RecordLastSuccess records the current time as the sweep's last successful run.
//
// Parameters:
//   - sweep: Sweep name
func (m *WorkerMetrics) RecordLastSuccess(sweep string) {
	m.SweepLastSuccessTimestamp.WithLabelValues(sweep).SetToCurrentTime()
}
