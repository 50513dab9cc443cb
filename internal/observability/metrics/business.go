package metrics

import (
	"time"
)

// Submit outcome label values.
const (
	OutcomeAccepted    = "accepted"
	OutcomeDuplicate   = "duplicate"
	OutcomeRateLimited = "rate_limited"
	OutcomeRejected    = "rejected"
)

// RecordSubmitOutcome records the synchronous result of a notification
// submission. Outcome should be one of the Outcome* constants.
func RecordSubmitOutcome(channel, outcome string) {
	SubmitOutcomesTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordDeliveryAttempt records one provider send attempt.
// Result is "success" or the error class that came back
// (transient, permanent, unknown).
func RecordDeliveryAttempt(channel, result string, duration time.Duration) {
	DeliveryAttemptsTotal.WithLabelValues(channel, result).Inc()
	DeliveryAttemptDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDeliveryFinished records a delivery reaching a terminal state
// (succeeded or failed).
func RecordDeliveryFinished(channel, state string) {
	DeliveriesFinishedTotal.WithLabelValues(channel, state).Inc()
}

// RecordRetryScheduled records a scheduled retry or deferral.
// Reason distinguishes error-budget retries from backpressure deferrals:
// "error", "rate_limited", "breaker_open", "queue_full".
func RecordRetryScheduled(channel, reason string) {
	RetriesScheduledTotal.WithLabelValues(channel, reason).Inc()
}

// RecordRateLimitDecision records a token bucket acquisition attempt.
func RecordRateLimitDecision(channel string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	RateLimitDecisionsTotal.WithLabelValues(channel, decision).Inc()
}

// SetRetryTimersActive updates the pending retry timer gauge.
func SetRetryTimersActive(count int) {
	RetryTimersActive.Set(float64(count))
}

// IncInFlightAttempts marks one delivery attempt as executing.
func IncInFlightAttempts() {
	InFlightAttempts.Inc()
}

// DecInFlightAttempts marks one delivery attempt as finished.
func DecInFlightAttempts() {
	InFlightAttempts.Dec()
}

// UpdateDeliveriesByState refreshes the per-state record gauge.
// The maintenance worker calls this after each sweep.
func UpdateDeliveriesByState(state string, count int) {
	DeliveriesByState.WithLabelValues(state).Set(float64(count))
}

// RecordMessageSegments records the segment count of an outbound SMS.
// Encoding is "gsm7" or "ucs2".
func RecordMessageSegments(encoding string, segments int) {
	MessageSegments.WithLabelValues(encoding).Observe(float64(segments))
}

// RecordEventPublished records a delivery event publication attempt.
func RecordEventPublished(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	EventsPublishedTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "get_delivery", "mark_attempt").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
