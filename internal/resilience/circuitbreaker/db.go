package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker guards a database connection so callers fail fast when
// the database becomes unavailable instead of piling up on a dead pool.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig returns breaker tuning for database access: trips only on fully
// consecutive failures (ratio 1.0 over at least 5 requests), holds open for
// 30 seconds.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps db with the default database breaker.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

// NewDBCircuitBreakerWithConfig wraps db with custom breaker tuning.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// guard runs fn through the breaker and narrows the result back to T.
func guard[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return guard(dcb.cb, func() (*sql.Rows, error) {
		return dcb.db.QueryContext(ctx, query, args...)
	})
}

func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return guard(dcb.cb, func() (sql.Result, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
}

// QueryRowContext bypasses the breaker: sql.Row defers its error to Scan,
// so there is no outcome to record here.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return dcb.db.QueryRowContext(ctx, query, args...)
}

// BeginTx opens a transaction through the breaker. Statements on the
// returned transaction are not individually guarded.
func (dcb *DBCircuitBreaker) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return guard(dcb.cb, func() (*sql.Tx, error) {
		return dcb.db.BeginTx(ctx, opts)
	})
}

// PingContext verifies connectivity through the breaker so health probes
// fail fast while the circuit is open.
func (dcb *DBCircuitBreaker) PingContext(ctx context.Context) error {
	_, err := guard(dcb.cb, func() (struct{}, error) {
		return struct{}{}, dcb.db.PingContext(ctx)
	})
	return err
}

func (dcb *DBCircuitBreaker) State() gobreaker.State { return dcb.cb.State() }

func (dcb *DBCircuitBreaker) IsOpen() bool { return dcb.cb.IsOpen() }

// DB exposes the raw connection for operations that manage the pool itself.
func (dcb *DBCircuitBreaker) DB() *sql.DB { return dcb.db }
