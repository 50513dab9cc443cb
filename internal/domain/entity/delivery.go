package entity

import (
	"fmt"
	"time"
)

// DeliveryState is the lifecycle state of one delivery record.
//
// The state machine is:
//
//	pending -> sending -> {succeeded, pending_retry, failed}
//	pending_retry -> sending
//
// succeeded and failed are terminal; no transition leaves them.
type DeliveryState string

// Delivery lifecycle states.
const (
	StatePending      DeliveryState = "pending"
	StateSending      DeliveryState = "sending"
	StateSucceeded    DeliveryState = "succeeded"
	StatePendingRetry DeliveryState = "pending_retry"
	StateFailed       DeliveryState = "failed"
)

// Valid reports whether s is a known delivery state.
func (s DeliveryState) Valid() bool {
	switch s {
	case StatePending, StateSending, StateSucceeded, StatePendingRetry, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s DeliveryState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// String returns the wire representation of the state.
func (s DeliveryState) String() string {
	return string(s)
}

// transitions encodes the legal state graph. Absent entries are illegal.
var transitions = map[DeliveryState][]DeliveryState{
	StatePending:      {StateSending},
	StateSending:      {StateSucceeded, StatePendingRetry, StateFailed},
	StatePendingRetry: {StateSending, StateFailed},
}

// CanTransition reports whether the state machine permits from -> to.
// Terminal states permit nothing. pending_retry -> failed exists so a
// maintenance sweep can close out retries orphaned by process loss.
func CanTransition(from, to DeliveryState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrorClass is the uniform classification of a provider failure.
// Adapters map vendor-specific errors into one of these at their boundary
// so the core never depends on vendor error types.
type ErrorClass string

// Provider failure classifications.
const (
	// ErrorClassTransient marks failures worth retrying: network timeouts,
	// 5xx responses, provider throttling.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent marks failures retrying cannot fix: invalid
	// recipient, unverified number, malformed address, rejected credentials.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassUnknown marks failures the adapter could not classify.
	// Treated as transient for retry purposes but logged distinctly so an
	// operator can review the gap.
	ErrorClassUnknown ErrorClass = "unknown"
)

// Valid reports whether c is a known classification.
func (c ErrorClass) Valid() bool {
	switch c {
	case ErrorClassTransient, ErrorClassPermanent, ErrorClassUnknown:
		return true
	}
	return false
}

// Retryable reports whether the classification is eligible for another
// attempt. Unknown failures retry like transient ones.
func (c ErrorClass) Retryable() bool {
	return c == ErrorClassTransient || c == ErrorClassUnknown
}

// String returns the wire representation of the classification.
func (c ErrorClass) String() string {
	return string(c)
}

// DeliveryRecord tracks the lifecycle of one notification, keyed by
// idempotency key. Records are owned exclusively by the delivery store;
// other components read copies and request mutation through its API.
type DeliveryRecord struct {
	IdempotencyKey    string
	Channel           Channel
	State             DeliveryState
	AttemptCount      int
	LastError         string // empty when no attempt has failed
	ProviderMessageID string // set on success, empty otherwise
	FirstSeenAt       time.Time
	UpdatedAt         time.Time
}

// NewDeliveryRecord creates the initial pending record for a key.
func NewDeliveryRecord(key string, channel Channel, now time.Time) *DeliveryRecord {
	return &DeliveryRecord{
		IdempotencyKey: key,
		Channel:        channel,
		State:          StatePending,
		FirstSeenAt:    now,
		UpdatedAt:      now,
	}
}

// AttemptOutcome describes the result of one adapter invocation, as given
// to the delivery store. The store combines it with the record's attempt
// count to pick the next state: success, permanent failure, retry budget
// exhaustion, or another retry round.
type AttemptOutcome struct {
	Succeeded         bool
	ProviderMessageID string     // required when Succeeded
	Class             ErrorClass // required when not Succeeded
	ErrorMessage      string     // human-readable failure detail
	MaxAttempts       int        // channel retry budget, compared against the record's attempt count
}

// NextState computes the state a sending record moves to under this
// outcome, given the attempt count already recorded for the in-flight
// attempt. The returned message is the value for the record's last error
// field (empty on success).
func (o AttemptOutcome) NextState(attemptCount int) (DeliveryState, string) {
	if o.Succeeded {
		return StateSucceeded, ""
	}
	if o.Class == ErrorClassPermanent {
		return StateFailed, o.ErrorMessage
	}
	if attemptCount >= o.MaxAttempts {
		return StateFailed, RetryBudgetExhausted(attemptCount, o.ErrorMessage)
	}
	return StatePendingRetry, o.ErrorMessage
}

// RetryBudgetExhausted formats the terminal failure reason recorded when a
// delivery runs out of attempts. Kept in one place so logs, stores, and
// tests agree on the wording.
func RetryBudgetExhausted(attempts int, cause string) string {
	if cause == "" {
		return fmt.Sprintf("retry budget exhausted after %d attempts", attempts)
	}
	return fmt.Sprintf("retry budget exhausted after %d attempts: %s", attempts, cause)
}
