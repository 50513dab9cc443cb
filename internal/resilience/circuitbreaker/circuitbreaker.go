// Package circuitbreaker wraps github.com/sony/gobreaker for the external
// calls this service makes: provider sends, event publishing, and database
// access.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the breaker tuning for one dependency.
type Config struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval resets the closed-state counters.
	Interval time.Duration

	// Timeout is the open-state hold before probing again.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the circuit
	// once at least MinRequests have been observed.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns breaker tuning suitable for most dependencies.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// ProviderConfig returns tuning for outbound provider calls on one delivery
// channel. Each channel gets its own breaker so a failing SMS vendor does
// not block email traffic.
func ProviderConfig(channel string) Config {
	cfg := DefaultConfig("provider-" + channel)
	return cfg
}

// EventPublishConfig returns tuning for the delivery event publisher. Event
// emission is best-effort, so this breaker tolerates more failures before
// tripping.
func EventPublishConfig() Config {
	return Config{
		Name:             "event-publish",
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      10,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a circuit breaker from cfg. State transitions are logged.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings(cfg)),
		name:    cfg.Name,
	}
}

func settings(cfg Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
}

// Execute runs fn through the breaker. While the circuit is open it returns
// gobreaker.ErrOpenState without calling fn.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) IsOpen() bool { return cb.breaker.State() == gobreaker.StateOpen }
