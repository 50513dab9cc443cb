package pagination

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts listing requests by HTTP status and page depth
	// bucket, so deep-pagination abuse shows up separately from normal reads.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_pagination_requests_total",
		Help: "Total number of pagination requests",
	}, []string{"status", "page_range"})

	// DurationSeconds is the listing latency histogram, labelled by the
	// layer that was timed (handler, service, repository).
	DurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_pagination_duration_seconds",
		Help:    "Request duration distribution",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
	}, []string{"operation"})

	// TotalCount mirrors the most recent COUNT(*) over delivery records.
	TotalCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_total_count",
		Help: "Current total number of delivery records",
	})

	// ErrorsTotal counts listing failures by type: validation, database,
	// or timeout.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_pagination_errors_total",
		Help: "Total number of pagination errors",
	}, []string{"type"})
)

// RecordRequest counts one listing request.
func RecordRequest(statusCode int, page int) {
	RequestsTotal.WithLabelValues(strconv.Itoa(statusCode), pageRangeBucket(page)).Inc()
}

// RecordDuration observes one timed operation, in seconds.
func RecordDuration(operation string, duration float64) {
	DurationSeconds.WithLabelValues(operation).Observe(duration)
}

// UpdateTotalCount refreshes the delivery count gauge.
func UpdateTotalCount(count int64) {
	TotalCount.Set(float64(count))
}

// RecordError counts one listing failure of the given type.
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

func pageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
