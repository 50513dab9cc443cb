// Package retry implements exponential backoff with jitter for transient
// failures, both as an in-process retry loop and as a delay calculator for
// persisted delivery attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds backoff parameters. MaxAttempts counts the first try.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay per attempt.
	Multiplier float64

	// JitterFraction (0.0 to 1.0) is the share of the delay added as random jitter.
	JitterFraction float64
}

// DefaultConfig returns a general-purpose retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// DeliveryConfig builds the backoff for a delivery channel. Attempt counts
// and delay bounds come from the dispatch configuration; the doubling
// multiplier and 20% jitter are fixed across channels.
func DeliveryConfig(maxAttempts int, baseDelay, maxDelay time.Duration) Config {
	return Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   baseDelay,
		MaxDelay:       maxDelay,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// DBConfig returns a fast schedule for transient database connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Delay returns the backoff to apply after failed attempt number `attempt`
// (1-based). The delay grows exponentially from InitialDelay, is capped at
// MaxDelay, then receives additive jitter of up to JitterFraction of the
// capped value. Attempt numbers below 1 count as 1; attempt numbers large
// enough to overflow the exponential resolve to MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if math.IsNaN(delay) || math.IsInf(delay, 1) || delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	return addJitter(time.Duration(delay), c.JitterFraction)
}

// WithBackoff runs fn until it succeeds, returns a non-retryable error, the
// attempt budget runs out, or ctx is cancelled during a backoff wait.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay(attempt)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// transientErrnos are connection-level failures worth another attempt.
var transientErrnos = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ETIMEDOUT,
	syscall.ENETUNREACH,
}

// IsRetryable reports whether err is worth retrying. Context cancellation is
// final; network timeouts, transient syscall errors, and HTTP 5xx/429/408
// are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500 && httpErr.StatusCode < 600:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		}
	}

	return false
}

// HTTPError carries a provider response status for retry classification.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- backoff jitter does not need cryptographic randomness
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
