// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
}

func gauge(name, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

// HTTP metrics track HTTP request patterns and performance.
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = counterVec("http_requests_total",
		"Total number of HTTP requests",
		"method", "path", "status")

	// HTTPRequestDuration measures HTTP request duration in seconds.
	HTTPRequestDuration = histogramVec("http_request_duration_seconds",
		"HTTP request duration in seconds",
		prometheus.DefBuckets,
		"method", "path", "status")

	// HTTPRequestSize measures HTTP request body size in bytes.
	HTTPRequestSize = histogramVec("http_request_size_bytes",
		"HTTP request size in bytes",
		prometheus.ExponentialBuckets(100, 10, 8),
		"method", "path")

	// HTTPResponseSize measures HTTP response body size in bytes.
	HTTPResponseSize = histogramVec("http_response_size_bytes",
		"HTTP response size in bytes",
		prometheus.ExponentialBuckets(100, 10, 8),
		"method", "path")

	// ActiveConnections tracks the number of active HTTP connections.
	ActiveConnections = gauge("http_active_connections",
		"Number of active HTTP connections")
)

// Dispatch metrics track notification delivery operations.
var (
	// SubmitOutcomesTotal counts submit results by channel and outcome
	// (accepted, duplicate, rate_limited, rejected).
	SubmitOutcomesTotal = counterVec("dispatch_submit_outcomes_total",
		"Total number of notification submissions by outcome",
		"channel", "outcome")

	// DeliveryAttemptsTotal counts provider send attempts by channel and
	// result (success, transient, permanent, unknown).
	DeliveryAttemptsTotal = counterVec("dispatch_delivery_attempts_total",
		"Total number of provider delivery attempts",
		"channel", "result")

	// DeliveryAttemptDuration measures provider call latency per channel.
	DeliveryAttemptDuration = histogramVec("dispatch_delivery_attempt_duration_seconds",
		"Provider delivery attempt duration in seconds",
		prometheus.ExponentialBuckets(0.01, 2, 12),
		"channel")

	// DeliveriesFinishedTotal counts deliveries reaching a terminal state.
	DeliveriesFinishedTotal = counterVec("dispatch_deliveries_finished_total",
		"Total number of deliveries reaching a terminal state",
		"channel", "state")

	// RetriesScheduledTotal counts scheduled retries by channel and reason
	// (error, rate_limited, breaker_open, queue_full).
	RetriesScheduledTotal = counterVec("dispatch_retries_scheduled_total",
		"Total number of retries scheduled",
		"channel", "reason")

	// RateLimitDecisionsTotal counts token bucket decisions by channel
	// (allowed, denied).
	RateLimitDecisionsTotal = counterVec("dispatch_rate_limit_decisions_total",
		"Total number of per-channel token bucket decisions",
		"channel", "decision")

	// RetryTimersActive tracks pending retry timers.
	RetryTimersActive = gauge("dispatch_retry_timers_active",
		"Number of pending retry timers")

	// InFlightAttempts tracks delivery attempts currently executing.
	InFlightAttempts = gauge("dispatch_in_flight_attempts",
		"Number of delivery attempts currently executing")

	// DeliveriesByState tracks stored delivery records per state,
	// refreshed periodically by the maintenance worker.
	DeliveriesByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_deliveries_by_state",
			Help: "Number of delivery records per state",
		},
		[]string{"state"},
	)

	// MessageSegments measures SMS segment counts per encoding.
	MessageSegments = histogramVec("dispatch_message_segments",
		"SMS segments per message",
		[]float64{1, 2, 3, 4, 5, 6, 8, 10},
		"encoding")

	// EventsPublishedTotal counts delivery event publications by result.
	EventsPublishedTotal = counterVec("dispatch_events_published_total",
		"Total number of delivery events published",
		"result")
)

// Database metrics track database performance.
var (
	// DBQueryDuration measures database query duration.
	DBQueryDuration = histogramVec("db_query_duration_seconds",
		"Database query duration in seconds",
		prometheus.ExponentialBuckets(0.001, 2, 10),
		"operation")

	// DBConnectionsActive tracks active database connections.
	DBConnectionsActive = gauge("db_connections_active",
		"Number of active database connections")

	// DBConnectionsIdle tracks idle database connections.
	DBConnectionsIdle = gauge("db_connections_idle",
		"Number of idle database connections")
)

// RecordHTTPRequest records a completed HTTP request with its metadata.
// Size histograms are skipped for empty bodies.
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation.
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
