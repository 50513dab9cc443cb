package quota

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements Metrics with Prometheus collectors.
//
// The scope label distinguishes independent limiters sharing a process,
// for example one per protected endpoint group.
type PrometheusMetrics struct {
	decisions     *prometheus.CounterVec
	checkDuration prometheus.Histogram
	activeKeys    prometheus.Gauge
	evictions     prometheus.Counter
}

// NewPrometheusMetrics registers the quota collectors on reg. Pass
// prometheus.DefaultRegisterer to share the application registry.
func NewPrometheusMetrics(reg prometheus.Registerer, scope string) *PrometheusMetrics {
	factory := promauto.With(reg)
	scopeLabel := prometheus.Labels{"scope": scope}

	return &PrometheusMetrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "quota_decisions_total",
				Help:        "Quota check outcomes (allowed, denied, error)",
				ConstLabels: scopeLabel,
			},
			[]string{"outcome"},
		),
		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name: "quota_check_duration_seconds",
				Help: "Duration of quota checks",
				// Checks are in-memory map operations; anything past a
				// few milliseconds means lock contention.
				Buckets:     []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
				ConstLabels: scopeLabel,
			},
		),
		activeKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "quota_active_keys",
				Help:        "Number of caller keys currently tracked",
				ConstLabels: scopeLabel,
			},
		),
		evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "quota_evictions_total",
				Help:        "Caller keys evicted to honor the key cap",
				ConstLabels: scopeLabel,
			},
		),
	}
}

// RecordDecision implements Metrics.
func (m *PrometheusMetrics) RecordDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

// RecordCheckDuration implements Metrics.
func (m *PrometheusMetrics) RecordCheckDuration(d time.Duration) {
	m.checkDuration.Observe(d.Seconds())
}

// SetActiveKeys implements Metrics.
func (m *PrometheusMetrics) SetActiveKeys(count int) {
	m.activeKeys.Set(float64(count))
}

// RecordEvictions implements Metrics.
func (m *PrometheusMetrics) RecordEvictions(count int) {
	m.evictions.Add(float64(count))
}
