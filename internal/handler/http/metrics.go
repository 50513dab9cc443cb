package http

import (
	"net/http"
	"strconv"
	"time"

	"notify-dispatch/internal/handler/http/pathutil"
	"notify-dispatch/internal/handler/http/responsewriter"
	"notify-dispatch/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsMiddleware records HTTP request metrics including duration, size, and status codes.
// It uses path normalization to prevent label cardinality explosion from key-containing paths.
// The collectors live in the observability metrics registry so the API server and the
// maintenance worker share a single set of definitions.
// The middleware tracks:
// - In-flight requests (gauge incremented/decremented per request)
// - Request duration
// - Request and response sizes
// - Status code distribution
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Track in-flight requests
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		// Normalize path to prevent cardinality explosion
		// Example: /deliveries/order-42 -> /deliveries/:key
		normalizedPath := pathutil.NormalizePath(r.URL.Path)

		// Wrap response writer to capture status code and response size
		rw := responsewriter.Wrap(w)

		// Measure request duration
		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		// Record metrics (using normalized path to prevent cardinality explosion)
		status := strconv.Itoa(rw.StatusCode())
		requestSize := 0
		if r.ContentLength > 0 {
			requestSize = int(r.ContentLength)
		}
		metrics.RecordHTTPRequest(r.Method, normalizedPath, status, duration, requestSize, rw.BytesWritten())
	})
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
