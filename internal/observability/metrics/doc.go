// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Dispatch metrics (submit outcomes, delivery attempts, retries)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "notify-dispatch/internal/observability/metrics"
//
//	func sendAttempt(channel string) {
//	    start := time.Now()
//	    // ... call the provider ...
//
//	    metrics.RecordDeliveryAttempt(channel, "success", time.Since(start))
//	    metrics.RecordOperationDuration("send_attempt", time.Since(start))
//	}
package metrics
