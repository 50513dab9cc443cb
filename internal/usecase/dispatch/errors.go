package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"notify-dispatch/internal/domain/entity"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
// Callers should surface it as a temporary service condition.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// ClassifiedError carries a provider failure together with its error
// class. Adapters wrap every failure in one so the dispatcher can pick
// between another retry round and a terminal failure. RetryAfter, when
// positive, is the vendor's own backoff hint; the dispatcher treats it
// as a floor under the computed retry delay.
type ClassifiedError struct {
	Class      entity.ErrorClass
	RetryAfter time.Duration
	Err        error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a failure worth retrying: timeouts, 5xx
// responses, vendor rate limits.
func Transient(err error) error {
	return &ClassifiedError{Class: entity.ErrorClassTransient, Err: err}
}

// TransientRetryAfter is Transient with the vendor's Retry-After hint
// attached, for 429 responses that name their own pause.
func TransientRetryAfter(err error, retryAfter time.Duration) error {
	return &ClassifiedError{Class: entity.ErrorClassTransient, RetryAfter: retryAfter, Err: err}
}

// Permanent wraps err as a failure no retry can fix: invalid recipient,
// rejected template, authentication failure.
func Permanent(err error) error {
	return &ClassifiedError{Class: entity.ErrorClassPermanent, Err: err}
}

// Classify extracts the error class from an adapter error.
//
// Wrapped *ClassifiedError values win. Deadline expiry and circuit
// breaker rejections are transient. Anything else is unknown, which the
// retry policy treats like transient.
func Classify(err error) entity.ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Class.Valid() {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ErrorClassTransient
	}
	if IsBreakerRejection(err) {
		return entity.ErrorClassTransient
	}
	return entity.ErrorClassUnknown
}

// RetryAfterHint extracts the vendor backoff hint from an adapter
// error. Zero means the vendor gave none.
func RetryAfterHint(err error) time.Duration {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.RetryAfter > 0 {
		return ce.RetryAfter
	}
	return 0
}

// IsBreakerRejection reports whether err means the provider circuit
// breaker refused the call before it reached the vendor.
func IsBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
