// Package ratelimit guards provider invocation frequency with one token
// bucket per channel. Buckets are shared across all concurrent dispatch
// workers; acquisition is atomic and never performs I/O, so it is safe to
// call on the submit hot path.
package ratelimit

import (
	"golang.org/x/time/rate"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/metrics"
)

// Settings configures one channel's token bucket.
//
// Capacity is the burst size: the number of sends allowed back to back
// against a full bucket. RefillPerSec is the sustained send rate. A zero
// RefillPerSec never refills, which is useful in tests but rejected by
// config validation for real channels.
type Settings struct {
	Capacity     int
	RefillPerSec float64
}

// ChannelLimiter holds the token buckets for every configured channel.
//
// The bucket map is fixed at construction. Channels without a bucket are
// always denied, so a misrouted request can never bypass rate limiting.
type ChannelLimiter struct {
	limiters map[entity.Channel]*rate.Limiter
}

// New creates a ChannelLimiter with one bucket per entry in settings.
//
// Example:
//
//	limiter := ratelimit.New(map[entity.Channel]ratelimit.Settings{
//	    entity.ChannelSMS:   {Capacity: 10, RefillPerSec: 5},
//	    entity.ChannelEmail: {Capacity: 50, RefillPerSec: 25},
//	})
func New(settings map[entity.Channel]Settings) *ChannelLimiter {
	limiters := make(map[entity.Channel]*rate.Limiter, len(settings))
	for channel, s := range settings {
		limiters[channel] = rate.NewLimiter(rate.Limit(s.RefillPerSec), s.Capacity)
	}
	return &ChannelLimiter{limiters: limiters}
}

// TryAcquire consumes one token from the channel's bucket without blocking.
//
// Returns true when a token was available. Returns false when the bucket
// is empty or the channel has no bucket; the caller treats a denial as
// backpressure (defer and retry later), not as a failure.
func (l *ChannelLimiter) TryAcquire(channel entity.Channel) bool {
	limiter, ok := l.limiters[channel]
	if !ok {
		metrics.RecordRateLimitDecision(channel.String(), false)
		return false
	}

	allowed := limiter.Allow()
	metrics.RecordRateLimitDecision(channel.String(), allowed)
	return allowed
}
