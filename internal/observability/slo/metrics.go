// Package slo publishes the service level objective gauges the dispatch
// service is measured against. The gauges are refreshed periodically from
// recent measurements; the targets live here as constants so alert rules
// and dashboards reference a single source.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Targets. Submit latency covers the synchronous bookkeeping path only;
// provider calls happen asynchronously.
const (
	// 99.9% uptime allows roughly 43 minutes of downtime per month.
	AvailabilitySLO = 99.9

	LatencyP95SLO = 0.200
	LatencyP99SLO = 0.500

	// At most 0.1% of API requests may fail with a 5xx.
	ErrorRateSLO = 0.001

	// DeliverySuccessSLO is the target share of terminal deliveries that
	// succeeded. Failures include exhausted retry budgets but not
	// in-flight records.
	DeliverySuccessSLO = 0.995
)

func sloGauge(name, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
}

var (
	// SLOAvailability is (total_requests - 5xx_errors) / total_requests.
	SLOAvailability = sloGauge("slo_availability_ratio",
		"Current availability ratio (0-1), target: 0.999")

	// SLOLatencyP95 and SLOLatencyP99 come from the
	// http_request_duration_seconds histogram.
	SLOLatencyP95 = sloGauge("slo_latency_p95_seconds",
		"Current p95 latency in seconds, target: 0.200")
	SLOLatencyP99 = sloGauge("slo_latency_p99_seconds",
		"Current p99 latency in seconds, target: 0.500")

	// SLOErrorRate is 5xx_errors / total_requests.
	SLOErrorRate = sloGauge("slo_error_rate_ratio",
		"Current error rate ratio (0-1), target: 0.001")

	// SLODeliverySuccess is succeeded / (succeeded + failed) over terminal
	// deliveries.
	SLODeliverySuccess = sloGauge("slo_delivery_success_ratio",
		"Ratio of terminal deliveries that succeeded (0-1), target: 0.995")
)

// UpdateAvailability sets the availability gauge from a 0-1 ratio.
func UpdateAvailability(ratio float64) {
	SLOAvailability.Set(ratio)
}

// UpdateLatencyP95 sets the p95 submit latency gauge, e.g. from
// histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m])).
func UpdateLatencyP95(seconds float64) {
	SLOLatencyP95.Set(seconds)
}

// UpdateLatencyP99 sets the p99 submit latency gauge.
func UpdateLatencyP99(seconds float64) {
	SLOLatencyP99.Set(seconds)
}

// UpdateErrorRate sets the error rate gauge from a 0-1 ratio.
func UpdateErrorRate(ratio float64) {
	SLOErrorRate.Set(ratio)
}

// UpdateDeliverySuccess sets the delivery success gauge. The maintenance
// worker calls this after each sweep with counts from the delivery store.
func UpdateDeliverySuccess(ratio float64) {
	SLODeliverySuccess.Set(ratio)
}
