package dispatch

import (
	"time"

	"notify-dispatch/internal/domain/entity"
)

// OutcomeKind is the synchronous answer a caller gets from Submit.
type OutcomeKind string

const (
	// OutcomeAccepted means a delivery record exists for the key and the
	// pipeline owns it from here. Covers both fresh and duplicate keys.
	OutcomeAccepted OutcomeKind = "accepted"

	// OutcomeRateLimited means the channel bucket had no token. No
	// attempt ran; a deferred re-entry is scheduled.
	OutcomeRateLimited OutcomeKind = "rate_limited"

	// OutcomeRejected means the request is malformed or targets a
	// disabled channel. Nothing was recorded and nothing will retry.
	OutcomeRejected OutcomeKind = "rejected"
)

// Outcome reports what Submit decided for a request. Delivery itself is
// asynchronous; an accepted outcome only means the record is owned by
// the pipeline, not that the message reached the vendor.
type Outcome struct {
	Kind OutcomeKind

	// Duplicate is true when the idempotency key was already known.
	// The request was not dispatched again; State carries the existing
	// record's current state.
	Duplicate bool

	// State is the delivery state at the time Submit returned. Set for
	// accepted outcomes.
	State entity.DeliveryState

	// Reason explains a rejection in caller-facing terms.
	Reason string

	// RetryAfter hints how long a rate limited caller should wait
	// before resubmitting.
	RetryAfter time.Duration
}

func accepted(state entity.DeliveryState, duplicate bool) Outcome {
	return Outcome{Kind: OutcomeAccepted, State: state, Duplicate: duplicate}
}

func rateLimited(retryAfter time.Duration) Outcome {
	return Outcome{Kind: OutcomeRateLimited, RetryAfter: retryAfter}
}

func rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}
