package worker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolatedMetrics builds a WorkerMetrics on a private registry so each
// test observes only its own samples.
func isolatedMetrics(t *testing.T) (*WorkerMetrics, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := &WorkerMetrics{
		SweepRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_sweep_runs_total",
			Help: "Test counter",
		}, []string{"sweep", "status"}),
		SweepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "test_sweep_duration_seconds",
			Help:    "Test histogram",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"sweep"}),
		SweepRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_sweep_records_total",
			Help: "Test counter",
		}, []string{"sweep"}),
		SweepLastSuccessTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_sweep_last_success_timestamp",
			Help: "Test gauge",
		}, []string{"sweep"}),
	}
	reg.MustRegister(m.SweepRunsTotal, m.SweepDurationSeconds, m.SweepRecordsTotal, m.SweepLastSuccessTimestamp)
	return m, reg
}

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total uint64
		for _, m := range mf.GetMetric() {
			total += m.GetHistogram().GetSampleCount()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestNewWorkerMetrics(t *testing.T) {
	// The package-level instance avoids duplicate promauto registration
	// across test files.
	m := testWorkerMetrics

	require.NotNil(t, m)
	assert.NotNil(t, m.ConfigMetrics)
	assert.NotNil(t, m.SweepRunsTotal)
	assert.NotNil(t, m.SweepDurationSeconds)
	assert.NotNil(t, m.SweepRecordsTotal)
	assert.NotNil(t, m.SweepLastSuccessTimestamp)

	// promauto already registered everything; this must be a no-op, not a panic
	m.MustRegister()
}

func TestRecordSweepRun(t *testing.T) {
	m, _ := isolatedMetrics(t)

	m.RecordSweepRun("stale", "success")
	m.RecordSweepRun("stale", "success")
	m.RecordSweepRun("retention", "success")
	m.RecordSweepRun("stale", "failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("stale", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("retention", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("stale", "failure")))
}

func TestRecordSweepDuration(t *testing.T) {
	m, reg := isolatedMetrics(t)

	m.RecordSweepDuration("stale", 0.02)
	m.RecordSweepDuration("stale", 0.15)
	m.RecordSweepDuration("stale", 1.2)

	assert.EqualValues(t, 3, histogramSampleCount(t, reg, "test_sweep_duration_seconds"))
}

func TestRecordRecordsSwept(t *testing.T) {
	m, _ := isolatedMetrics(t)

	m.RecordRecordsSwept("stale", 3)
	m.RecordRecordsSwept("stale", 1)
	m.RecordRecordsSwept("retention", 250)
	// Zero affected rows is the common case for a healthy system
	m.RecordRecordsSwept("gauges", 0)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("stale")))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("retention")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("gauges")))
}

func TestRecordLastSuccess(t *testing.T) {
	m, _ := isolatedMetrics(t)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.SweepLastSuccessTimestamp.WithLabelValues("stale")))

	m.RecordLastSuccess("stale")

	assert.Positive(t, testutil.ToFloat64(m.SweepLastSuccessTimestamp.WithLabelValues("stale")))
	// Other sweeps untouched
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SweepLastSuccessTimestamp.WithLabelValues("retention")))
}

// Two sweep cycles, the second of which fails the stale sweep. Failed
// runs are counted but contribute neither affected rows nor a fresh
// last-success timestamp.
func TestSweepCycleAccounting(t *testing.T) {
	m, reg := isolatedMetrics(t)

	m.RecordSweepRun("stale", "success")
	m.RecordSweepDuration("stale", 0.03)
	m.RecordRecordsSwept("stale", 2)
	m.RecordLastSuccess("stale")

	m.RecordSweepRun("retention", "success")
	m.RecordSweepDuration("retention", 0.4)
	m.RecordRecordsSwept("retention", 120)
	m.RecordLastSuccess("retention")

	m.RecordSweepRun("stale", "failure")
	m.RecordSweepDuration("stale", 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("stale", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("stale", "failure")))
	assert.EqualValues(t, 3, histogramSampleCount(t, reg, "test_sweep_duration_seconds"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("stale")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("retention")))
	assert.Positive(t, testutil.ToFloat64(m.SweepLastSuccessTimestamp.WithLabelValues("stale")))
}

func TestMetricsConcurrentUpdates(t *testing.T) {
	m, _ := isolatedMetrics(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSweepRun("stale", "success")
			m.RecordSweepDuration("stale", 0.05)
			m.RecordRecordsSwept("stale", 1)
			m.RecordLastSuccess("stale")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("stale", "success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SweepRecordsTotal.WithLabelValues("stale")))
}
