package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics exposes configuration-load observability for one component
// (api, worker). Metric names are prefixed with the component so fallback
// behavior is visible per process:
//
//	{component}_config_load_timestamp
//	{component}_config_validation_errors_total  (by field)
//	{component}_config_fallbacks_total          (by field)
//	{component}_config_fallback_active
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec

	// FallbackActive is 1 while any configuration field runs on a fallback
	// value. Alert on this staying at 1.
	FallbackActive prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the component's config metrics against the
// Prometheus default registry. Duplicate component names panic, so each
// process must pick a unique one.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	gauge := func(suffix, help string) prometheus.Gauge {
		return promauto.NewGauge(prometheus.GaugeOpts{
			Name: componentName + suffix,
			Help: help,
		})
	}
	counter := func(suffix, help string) *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Name: componentName + suffix,
			Help: help,
		}, []string{"field"})
	}

	return &ConfigMetrics{
		LoadTimestamp: gauge("_config_load_timestamp",
			"Unix timestamp of last "+componentName+" configuration load"),
		ValidationErrorsTotal: counter("_config_validation_errors_total",
			"Total number of "+componentName+" configuration validation errors"),
		FallbacksTotal: counter("_config_fallbacks_total",
			"Total number of "+componentName+" configuration fallback operations"),
		FallbackActive: gauge("_config_fallback_active",
			"1 if any "+componentName+" configuration fallback is active, 0 otherwise"),
		componentName: componentName,
	}
}

// RecordLoadTimestamp marks now as the configuration load time.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a validation error for a field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a fallback for a field. fallbackType documents
// intent at call sites ("default"); the counter is labeled by field alone.
func (m *ConfigMetrics) RecordFallback(field, fallbackType string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive sets the fallback active gauge.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
