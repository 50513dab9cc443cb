// Package quota provides framework-agnostic per-caller admission quotas
// using token buckets.
//
// It protects the submission API from a single noisy caller: each caller
// key (an IP address or API key) gets its own bucket, checked atomically
// on the request hot path. Storage, metrics, and time are pluggable so
// the package can back HTTP middleware, gRPC interceptors, or CLI tools,
// and so time-dependent behavior is testable with fake clocks.
//
// The per-caller quota is a different concern from the per-channel
// provider rate gate inside the dispatch pipeline: this package answers
// "may this caller submit more requests", not "may this channel send".
package quota

import (
	"context"
	"time"
)

// TakeResult is the outcome of one atomic token acquisition.
type TakeResult struct {
	// Allowed reports whether a token was consumed.
	Allowed bool

	// Remaining is the number of whole tokens left after this take.
	Remaining int

	// RetryAfter is how long until the next token exists. Zero when
	// the take was allowed.
	RetryAfter time.Duration
}

// Store holds per-key bucket state. The check and the token consumption
// must happen atomically within Take; a separate check-then-add sequence
// would let concurrent requests slip past the limit.
//
// All methods must be safe for concurrent use. The context is accepted
// for remote backends; the in-memory store ignores it.
type Store interface {
	// Take refills the key's bucket to now and consumes one token when
	// available.
	Take(ctx context.Context, key string, now time.Time) (TakeResult, error)

	// Len reports the number of tracked keys.
	Len(ctx context.Context) (int, error)

	// PruneIdle drops keys whose last activity precedes cutoff and
	// returns how many were removed.
	PruneIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// Metrics receives quota decisions and store health. Implementations
// must be safe for concurrent use.
type Metrics interface {
	// RecordDecision counts one check outcome: "allowed", "denied", or
	// "error".
	RecordDecision(outcome string)

	// RecordCheckDuration observes how long one check took.
	RecordCheckDuration(d time.Duration)

	// SetActiveKeys records the number of tracked caller keys.
	SetActiveKeys(count int)

	// RecordEvictions counts keys evicted to honor the key cap.
	RecordEvictions(count int)
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Decision is the answer to one quota check, carrying what an HTTP
// handler needs for rate limit response headers.
type Decision struct {
	// Key is the caller identifier the decision applies to.
	Key string

	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the caller's burst capacity.
	Limit int

	// Remaining is the number of requests left before denial.
	Remaining int

	// RetryAfter is how long the caller should wait when denied.
	RetryAfter time.Duration
}

// Config controls one Limiter.
type Config struct {
	// RequestsPerSec is the sustained per-caller rate. Values <= 0 fall
	// back to the default.
	// Default: 5
	RequestsPerSec float64

	// Burst is the per-caller bucket capacity. Values <= 0 fall back to
	// the default.
	// Default: 10
	Burst int

	// MaxKeys caps the number of tracked callers; the idlest key is
	// evicted when a new caller would exceed it.
	// Default: 10000
	MaxKeys int

	// IdleTTL is how long a caller may stay idle before the janitor
	// prunes its bucket.
	// Default: 10m
	IdleTTL time.Duration
}

// DefaultConfig returns production defaults sized for a public
// submission API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSec: 5,
		Burst:          10,
		MaxKeys:        10000,
		IdleTTL:        10 * time.Minute,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = d.RequestsPerSec
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = d.MaxKeys
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = d.IdleTTL
	}
	return c
}
