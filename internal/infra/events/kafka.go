// Package events publishes delivery state transitions to Kafka for
// downstream consumers. Publishing is best-effort: a lost event never
// blocks or rewinds a delivery.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/resilience/circuitbreaker"
)

// DeliveryEvent is the wire shape of one state transition.
type DeliveryEvent struct {
	IdempotencyKey    string    `json:"idempotency_key"`
	Channel           string    `json:"channel"`
	State             string    `json:"state"`
	AttemptCount      int       `json:"attempt_count"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// KafkaPublisher emits delivery events to a Kafka topic. Messages are
// keyed by idempotency key so per-delivery ordering survives partitioning.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	breaker  *circuitbreaker.CircuitBreaker
}

// NewKafkaPublisher connects an idempotent synchronous producer to the
// configured brokers.
func NewKafkaPublisher(cfg config.EventsConfig) (*KafkaPublisher, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		breaker:  circuitbreaker.New(circuitbreaker.EventPublishConfig()),
	}, nil
}

// PublishTransition implements dispatch.EventPublisher. Failures are
// counted and logged, never returned; the breaker keeps a dead broker
// from stalling attempt goroutines on every transition.
func (p *KafkaPublisher) PublishTransition(ctx context.Context, rec *entity.DeliveryRecord) {
	event := DeliveryEvent{
		IdempotencyKey:    rec.IdempotencyKey,
		Channel:           string(rec.Channel),
		State:             string(rec.State),
		AttemptCount:      rec.AttemptCount,
		ProviderMessageID: rec.ProviderMessageID,
		Error:             rec.LastError,
		OccurredAt:        rec.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.RecordEventPublished(false)
		slog.Error("Failed to encode delivery event",
			slog.String("idempotency_key", rec.IdempotencyKey),
			slog.Any("error", err))
		return
	}

	if _, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.send(ctx, rec.IdempotencyKey, payload)
	}); err != nil {
		metrics.RecordEventPublished(false)
		slog.Warn("Failed to publish delivery event",
			slog.String("idempotency_key", rec.IdempotencyKey),
			slog.String("state", string(rec.State)),
			slog.Any("error", err))
		return
	}
	metrics.RecordEventPublished(true)
}

func (p *KafkaPublisher) send(ctx context.Context, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
