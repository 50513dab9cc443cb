package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/repository"
	"notify-dispatch/internal/resilience/retry"
)

const (
	// storeOpTimeout bounds a single delivery store operation made from
	// an attempt goroutine. Store operations use a detached context so
	// results reached during shutdown are still recorded.
	storeOpTimeout = 10 * time.Second
)

// Service accepts notification requests and drives each one to a
// terminal delivery state.
type Service interface {
	// Submit runs the admission pipeline for a request: validation,
	// idempotency check, per-channel rate gate, and the asynchronous
	// first send attempt.
	//
	// Submit never blocks on the vendor. An accepted outcome means the
	// pipeline owns the key from here; delivery progress is observable
	// through Delivery and the published transition events.
	//
	// Returns:
	//   - Outcome: the synchronous decision (accepted, rate limited, rejected)
	//   - error: non-nil only for infrastructure failures (store
	//     unavailable) and ErrShuttingDown
	Submit(ctx context.Context, req *entity.NotificationRequest) (Outcome, error)

	// Delivery returns the record for an idempotency key.
	// Returns entity.ErrNotFound when the key was never accepted.
	Delivery(ctx context.Context, key string) (*entity.DeliveryRecord, error)

	// ListDeliveries returns one page of delivery records, newest first,
	// optionally filtered by state and channel.
	ListDeliveries(ctx context.Context, filters repository.DeliveryFilters, params pagination.Params) (*PaginatedDeliveries, error)

	// Shutdown stops retry timers, waits for in-flight attempts to
	// finish, and aborts them when ctx expires first. Records whose
	// timers were dropped stay in pending or pending_retry for the
	// maintenance sweep; Submit returns ErrShuttingDown from the first
	// call on.
	Shutdown(ctx context.Context) error
}

// RateLimiter grants per-channel send tokens without blocking.
// Implemented by ratelimit.ChannelLimiter.
type RateLimiter interface {
	TryAcquire(channel entity.Channel) bool
}

// EventPublisher receives delivery state transitions. Implementations
// own their failure handling; publishing never affects delivery state,
// so there is no error return.
type EventPublisher interface {
	PublishTransition(ctx context.Context, rec *entity.DeliveryRecord)
}

// PaginatedDeliveries bundles one page of records with pagination metadata.
type PaginatedDeliveries struct {
	Data       []*entity.DeliveryRecord
	Pagination pagination.Metadata
}

// channelRuntime is the per-channel wiring resolved once at construction.
type channelRuntime struct {
	cfg     config.ChannelConfig
	backoff retry.Config
	adapter ChannelAdapter
}

// service is the concrete implementation of Service.
type service struct {
	store     repository.DeliveryRepository
	limiter   RateLimiter
	publisher EventPublisher
	scheduler *RetryScheduler
	cfg       *config.DispatchConfig
	channels  map[entity.Channel]channelRuntime

	workerPool     chan struct{} // semaphore bounding concurrent attempts
	wg             sync.WaitGroup
	closed         atomic.Bool
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewService wires the dispatch pipeline.
//
// Adapters registered for channels that are missing from the config or
// disabled there are ignored with a warning. A nil publisher is replaced
// by a no-op one.
func NewService(
	cfg *config.DispatchConfig,
	store repository.DeliveryRepository,
	limiter RateLimiter,
	adapters []ChannelAdapter,
	publisher EventPublisher,
) Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	svc := &service{
		store:          store,
		limiter:        limiter,
		publisher:      publisher,
		scheduler:      NewRetryScheduler(),
		cfg:            cfg,
		channels:       make(map[entity.Channel]channelRuntime, len(adapters)),
		workerPool:     make(chan struct{}, cfg.Dispatcher.MaxConcurrent),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	for _, a := range adapters {
		ch := a.Channel()
		chCfg, ok := cfg.Channels[ch.String()]
		if !ok || !chCfg.Enabled {
			slog.Warn("Adapter registered for disabled channel, ignoring",
				slog.String("channel", ch.String()))
			continue
		}
		svc.channels[ch] = channelRuntime{
			cfg:     chCfg,
			backoff: retry.DeliveryConfig(chCfg.MaxAttempts, chCfg.BaseBackoff, chCfg.MaxBackoff),
			adapter: a,
		}
	}

	return svc
}

// Submit implements Service.Submit.
func (s *service) Submit(ctx context.Context, req *entity.NotificationRequest) (Outcome, error) {
	if s.closed.Load() {
		return Outcome{}, ErrShuttingDown
	}
	if req == nil {
		return rejected("request is required"), nil
	}

	if err := req.Validate(); err != nil {
		metrics.RecordSubmitOutcome(channelLabel(req.Channel), metrics.OutcomeRejected)
		slog.Warn("Notification rejected",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("channel", channelLabel(req.Channel)),
			slog.Any("error", err))
		return rejected(err.Error()), nil
	}

	rt, ok := s.channels[req.Channel]
	if !ok {
		metrics.RecordSubmitOutcome(req.Channel.String(), metrics.OutcomeRejected)
		slog.Warn("Notification rejected: channel disabled",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("channel", req.Channel.String()))
		return rejected(fmt.Sprintf("channel %s is disabled", req.Channel)), nil
	}

	rec, created, err := s.store.GetOrCreate(ctx,
		entity.NewDeliveryRecord(req.IdempotencyKey, req.Channel, time.Now().UTC()))
	if err != nil {
		return Outcome{}, fmt.Errorf("get or create delivery: %w", err)
	}
	if !created {
		metrics.RecordSubmitOutcome(req.Channel.String(), metrics.OutcomeDuplicate)
		slog.Info("Duplicate submission",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("channel", req.Channel.String()),
			slog.String("state", rec.State.String()))
		return accepted(rec.State, true), nil
	}

	env := entity.NewEnvelope(req, rt.cfg.SenderIdentity, effectiveTimeout(req.Timeout, rt.cfg.SendTimeout))

	if !s.limiter.TryAcquire(req.Channel) {
		metrics.RecordSubmitOutcome(req.Channel.String(), metrics.OutcomeRateLimited)
		metrics.RecordRetryScheduled(req.Channel.String(), "rate_limited")
		slog.Info("Channel rate limited, send deferred",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.String("channel", req.Channel.String()),
			slog.Duration("defer_delay", rt.cfg.RateLimitDeferDelay))
		s.scheduler.Schedule(env.IdempotencyKey, rt.cfg.RateLimitDeferDelay, s.reenter(env))
		return rateLimited(rt.cfg.RateLimitDeferDelay), nil
	}

	metrics.RecordSubmitOutcome(req.Channel.String(), metrics.OutcomeAccepted)
	s.startAttempt(env, true)
	return accepted(rec.State, false), nil
}

// Delivery implements Service.Delivery.
func (s *service) Delivery(ctx context.Context, key string) (*entity.DeliveryRecord, error) {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return rec, nil
}

// ListDeliveries implements Service.ListDeliveries.
func (s *service) ListDeliveries(ctx context.Context, filters repository.DeliveryFilters, params pagination.Params) (*PaginatedDeliveries, error) {
	total, err := s.store.CountDeliveries(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)
	records, err := s.store.ListDeliveries(ctx, filters, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	return &PaginatedDeliveries{
		Data: records,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: pagination.CalculateTotalPages(total, params.Limit),
		},
	}, nil
}

// reenter returns the scheduler callback that re-runs the attempt
// pipeline for an envelope without a pre-acquired rate token.
func (s *service) reenter(env entity.Envelope) func() {
	return func() { s.startAttempt(env, false) }
}

// startAttempt launches one asynchronous attempt for the envelope.
// tokenHeld marks that Submit already took the rate token for this
// attempt; re-entries acquire their own.
func (s *service) startAttempt(env entity.Envelope, tokenHeld bool) {
	if s.closed.Load() {
		slog.Warn("Attempt skipped: dispatcher shutting down",
			slog.String("idempotency_key", env.IdempotencyKey),
			slog.String("channel", env.Channel.String()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic during delivery attempt",
					slog.String("idempotency_key", env.IdempotencyKey),
					slog.String("channel", env.Channel.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()

		// Acquire a worker slot. A full pool defers the attempt rather
		// than queueing unbounded goroutines behind slow providers.
		select {
		case s.workerPool <- struct{}{}:
			defer func() { <-s.workerPool }()
		case <-time.After(s.cfg.Dispatcher.QueueAcquireTimeout):
			metrics.RecordRetryScheduled(env.Channel.String(), "queue_full")
			slog.Warn("Worker pool full, attempt deferred",
				slog.String("idempotency_key", env.IdempotencyKey),
				slog.String("channel", env.Channel.String()))
			s.scheduler.Schedule(env.IdempotencyKey, s.channels[env.Channel].cfg.RateLimitDeferDelay, s.reenter(env))
			return
		case <-s.shutdownCtx.Done():
			return
		}

		s.executeAttempt(env, tokenHeld)
	}()
}

// executeAttempt runs one pass of the attempt pipeline: breaker gate,
// rate gate, attempt claim, vendor call, result recording, and retry
// scheduling.
func (s *service) executeAttempt(env entity.Envelope, tokenHeld bool) {
	key := env.IdempotencyKey
	channel := env.Channel.String()
	rt := s.channels[env.Channel]

	if !rt.adapter.Ready() {
		metrics.RecordRetryScheduled(channel, "breaker_open")
		slog.Warn("Provider breaker open, attempt deferred",
			slog.String("idempotency_key", key),
			slog.String("channel", channel))
		s.scheduler.Schedule(key, rt.cfg.RateLimitDeferDelay, s.reenter(env))
		return
	}

	if !tokenHeld && !s.limiter.TryAcquire(env.Channel) {
		metrics.RecordRetryScheduled(channel, "rate_limited")
		slog.Debug("Channel rate limited on re-entry, attempt deferred",
			slog.String("idempotency_key", key),
			slog.String("channel", channel))
		s.scheduler.Schedule(key, rt.cfg.RateLimitDeferDelay, s.reenter(env))
		return
	}

	claimCtx, cancelClaim := context.WithTimeout(context.Background(), storeOpTimeout)
	attempt, err := s.store.MarkAttempt(claimCtx, key)
	cancelClaim()
	if err != nil {
		if errors.Is(err, entity.ErrInvalidTransition) || errors.Is(err, entity.ErrNotFound) {
			// Record is terminal or another attempt owns it.
			slog.Debug("Attempt not claimable",
				slog.String("idempotency_key", key),
				slog.Any("error", err))
			return
		}
		// Store unavailable; keep the delivery alive and try again later.
		metrics.RecordRetryScheduled(channel, "error")
		slog.Error("Failed to claim delivery attempt",
			slog.String("idempotency_key", key),
			slog.String("channel", channel),
			slog.Any("error", err))
		s.scheduler.Schedule(key, rt.cfg.RateLimitDeferDelay, s.reenter(env))
		return
	}

	sendCtx, cancelSend := context.WithTimeout(s.shutdownCtx, env.Timeout)
	metrics.IncInFlightAttempts()
	start := time.Now()
	res, sendErr := rt.adapter.Send(sendCtx, env)
	elapsed := time.Since(start)
	metrics.DecInFlightAttempts()
	cancelSend()

	outcome := entity.AttemptOutcome{MaxAttempts: rt.cfg.MaxAttempts}
	if sendErr == nil {
		outcome.Succeeded = true
		outcome.ProviderMessageID = res.ProviderMessageID
		metrics.RecordDeliveryAttempt(channel, "success", elapsed)
	} else {
		outcome.Class = Classify(sendErr)
		outcome.ErrorMessage = sendErr.Error()
		metrics.RecordDeliveryAttempt(channel, outcome.Class.String(), elapsed)
	}

	resultCtx, cancelResult := context.WithTimeout(context.Background(), storeOpTimeout)
	rec, err := s.store.MarkResult(resultCtx, key, outcome)
	cancelResult()
	if err != nil {
		// A vendor call already happened; re-entering here could send
		// the message twice. The record stays in sending until the
		// maintenance sweep fails it.
		slog.Error("Failed to record attempt result",
			slog.String("idempotency_key", key),
			slog.String("channel", channel),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		return
	}

	s.publisher.PublishTransition(context.Background(), rec)

	switch rec.State {
	case entity.StateSucceeded:
		metrics.RecordDeliveryFinished(channel, rec.State.String())
		slog.Info("Delivery succeeded",
			slog.String("idempotency_key", key),
			slog.String("channel", channel),
			slog.Int("attempt", attempt),
			slog.String("provider_message_id", rec.ProviderMessageID),
			slog.Duration("send_duration", elapsed))
	case entity.StateFailed:
		metrics.RecordDeliveryFinished(channel, rec.State.String())
		slog.Warn("Delivery failed",
			slog.String("idempotency_key", key),
			slog.String("channel", channel),
			slog.Int("attempt", attempt),
			slog.String("last_error", rec.LastError),
			slog.Duration("send_duration", elapsed))
	case entity.StatePendingRetry:
		delay := rt.backoff.Delay(rec.AttemptCount)
		// A vendor Retry-After hint floors the policy delay; retrying
		// sooner than the vendor asked would only burn an attempt.
		if hint := RetryAfterHint(sendErr); hint > delay {
			delay = hint
		}
		reason := "error"
		if IsBreakerRejection(sendErr) {
			reason = "breaker_open"
		}
		metrics.RecordRetryScheduled(channel, reason)
		slog.Info("Delivery attempt failed, retry scheduled",
			slog.String("idempotency_key", key),
			slog.String("channel", channel),
			slog.Int("attempt", attempt),
			slog.String("error_class", outcome.Class.String()),
			slog.Duration("retry_in", delay),
			slog.Any("error", sendErr))
		s.scheduler.Schedule(key, delay, s.reenter(env))
	}
}

// Shutdown implements Service.Shutdown.
func (s *service) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	slog.Info("Shutting down dispatcher",
		slog.Int("armed_timers", s.scheduler.Active()))

	// Disarm retry timers first so nothing new enters the pipeline.
	// The affected records stay in pending or pending_retry for the
	// maintenance sweep; delivery records carry no payload to replay from.
	s.scheduler.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.shutdownCancel()
		slog.Info("Dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		s.shutdownCancel()
		slog.Warn("Dispatcher shutdown timed out, in-flight attempts aborted")
		return ctx.Err()
	}
}

// effectiveTimeout resolves the adapter timeout for one request: the
// caller's override when given, the channel default otherwise.
func effectiveTimeout(requested, channelDefault time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	return channelDefault
}

// channelLabel returns a bounded metrics label for a possibly invalid
// channel value.
func channelLabel(ch entity.Channel) string {
	if ch.Valid() {
		return ch.String()
	}
	return "invalid"
}

// nopPublisher swallows transitions when no event sink is configured.
type nopPublisher struct{}

func (nopPublisher) PublishTransition(context.Context, *entity.DeliveryRecord) {}
