package repository

import (
	"context"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// DeliveryFilters contains optional filters for delivery listing.
type DeliveryFilters struct {
	Channel *entity.Channel       // Optional: Filter by delivery channel
	State   *entity.DeliveryState // Optional: Filter by lifecycle state
}

// DeliveryRepository persists delivery records keyed by idempotency key.
//
// Implementations own every state mutation: callers never write states
// directly, they request transitions through MarkAttempt and MarkResult,
// and the store enforces the state machine. All methods are safe for
// concurrent use.
type DeliveryRepository interface {
	// GetOrCreate registers the record if no delivery exists for its
	// idempotency key, or returns the existing record untouched.
	// The boolean is true when the record was newly created.
	GetOrCreate(ctx context.Context, rec *entity.DeliveryRecord) (*entity.DeliveryRecord, bool, error)

	// Get returns the record for the key, or entity.ErrNotFound.
	Get(ctx context.Context, key string) (*entity.DeliveryRecord, error)

	// MarkAttempt transitions pending or pending_retry to sending and
	// increments the attempt count, atomically. Returns the new attempt
	// count. Any other current state returns entity.ErrInvalidTransition
	// and leaves the record unchanged; the loser of a claim race treats
	// that as attempt-in-progress elsewhere, not a failure.
	MarkAttempt(ctx context.Context, key string) (int, error)

	// MarkResult transitions a sending record to the state the outcome
	// dictates (succeeded, pending_retry, or failed) and records the
	// provider message ID or last error. A record not in sending returns
	// entity.ErrInvalidTransition.
	MarkResult(ctx context.Context, key string, outcome entity.AttemptOutcome) (*entity.DeliveryRecord, error)

	// ListDeliveries retrieves filtered records ordered by first_seen_at DESC.
	// Uses LIMIT and OFFSET for pagination.
	ListDeliveries(ctx context.Context, filters DeliveryFilters, offset, limit int) ([]*entity.DeliveryRecord, error)

	// CountDeliveries returns the number of records matching the filters.
	// This is used for calculating pagination metadata (total pages, etc.).
	CountDeliveries(ctx context.Context, filters DeliveryFilters) (int64, error)

	// CountByState returns record counts per lifecycle state.
	// Feeds the deliveries-by-state gauge; missing states count as zero.
	CountByState(ctx context.Context) (map[entity.DeliveryState]int64, error)

	// FailStale forces non-terminal records untouched for longer than
	// olderThan into failed, recording the reason as the last error.
	// Pending is swept too: a deferred first attempt loses its timer on
	// shutdown the same way a pending_retry does. Records carry no payload, so a delivery orphaned by process
	// loss cannot be replayed; it is reported as failed, never silently
	// dropped. Returns the number of records transitioned.
	FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error)

	// PurgeTerminal deletes succeeded and failed records whose last update
	// is older than olderThan. Returns the number of records deleted.
	PurgeTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}
