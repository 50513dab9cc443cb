package quota

import (
	"context"
	"log/slog"
	"time"
)

// Limiter checks caller keys against their token budget.
type Limiter struct {
	cfg     Config
	store   Store
	metrics Metrics
	clock   Clock
}

// Options carries the pluggable collaborators for a Limiter. Nil fields
// get production defaults: an in-memory store sized from the config,
// no-op metrics, and the system clock.
type Options struct {
	Store   Store
	Metrics Metrics
	Clock   Clock
}

// New creates a Limiter.
func New(cfg Config, opts Options) *Limiter {
	cfg = cfg.withDefaults()

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore(MemoryStoreConfig{
			RequestsPerSec: cfg.RequestsPerSec,
			Burst:          cfg.Burst,
			MaxKeys:        cfg.MaxKeys,
			OnEvict:        metrics.RecordEvictions,
		})
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &Limiter{cfg: cfg, store: store, metrics: metrics, clock: clock}
}

// Check consumes one unit of the key's quota when available.
//
// A store failure fails open: quotas protect the API, they must never
// take it down. The error outcome is still counted so a broken remote
// backend is visible.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	start := l.clock.Now()
	res, err := l.store.Take(ctx, key, start)
	l.metrics.RecordCheckDuration(l.clock.Now().Sub(start))

	if err != nil {
		l.metrics.RecordDecision("error")
		slog.Warn("Quota check failed, allowing request",
			slog.String("key", key),
			slog.Any("error", err))
		return Decision{Key: key, Allowed: true, Limit: l.cfg.Burst, Remaining: l.cfg.Burst}
	}

	if res.Allowed {
		l.metrics.RecordDecision("allowed")
	} else {
		l.metrics.RecordDecision("denied")
	}
	return Decision{
		Key:        key,
		Allowed:    res.Allowed,
		Limit:      l.cfg.Burst,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}
}

// Prune drops buckets idle past the configured TTL and refreshes the
// active-key gauge.
func (l *Limiter) Prune(ctx context.Context) int {
	cutoff := l.clock.Now().Add(-l.cfg.IdleTTL)
	removed, err := l.store.PruneIdle(ctx, cutoff)
	if err != nil {
		slog.Warn("Quota prune failed", slog.Any("error", err))
		return 0
	}
	if count, err := l.store.Len(ctx); err == nil {
		l.metrics.SetActiveKeys(count)
	}
	return removed
}

// StartJanitor prunes on the given interval until ctx is done.
func (l *Limiter) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Prune(ctx)
			}
		}
	}()
}
