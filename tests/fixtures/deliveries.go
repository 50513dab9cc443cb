// Package fixtures provides reusable builders for delivery test data so
// integration tests across packages agree on what a representative
// request or record looks like.
package fixtures

import (
	"fmt"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// DefaultFirstSeen is the fixed creation timestamp used by the builders,
// chosen so assertions on timestamps are deterministic.
var DefaultFirstSeen = time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC)

// Request returns a valid NotificationRequest for the channel, with a
// recipient in the channel's native format and the given idempotency key.
func Request(channel entity.Channel, key string) *entity.NotificationRequest {
	return &entity.NotificationRequest{
		Channel:        channel,
		Recipient:      RecipientFor(channel),
		Body:           "fixture notification body",
		IdempotencyKey: key,
		CreatedAt:      DefaultFirstSeen,
	}
}

// RecipientFor returns a well-formed recipient address for the channel.
func RecipientFor(channel entity.Channel) string {
	switch channel {
	case entity.ChannelEmail:
		return "recipient@example.com"
	case entity.ChannelWhatsApp:
		return "whatsapp:+15551234567"
	default:
		return "+15551234567"
	}
}

// PendingRecord returns a fresh record as the store creates it on first
// acceptance.
func PendingRecord(channel entity.Channel, key string) *entity.DeliveryRecord {
	return entity.NewDeliveryRecord(key, channel, DefaultFirstSeen)
}

// SucceededRecord returns a terminal-success record after the given
// number of attempts, with a synthetic provider message id.
func SucceededRecord(channel entity.Channel, key string, attempts int) *entity.DeliveryRecord {
	rec := PendingRecord(channel, key)
	rec.State = entity.StateSucceeded
	rec.AttemptCount = attempts
	rec.ProviderMessageID = fmt.Sprintf("PM%s%04d", channel, attempts)
	rec.UpdatedAt = DefaultFirstSeen.Add(time.Duration(attempts) * time.Second)
	return rec
}

// FailedRecord returns a terminal-failure record whose retry budget of
// maxAttempts was exhausted by transient errors.
func FailedRecord(channel entity.Channel, key string, maxAttempts int) *entity.DeliveryRecord {
	rec := PendingRecord(channel, key)
	rec.State = entity.StateFailed
	rec.AttemptCount = maxAttempts
	rec.LastError = entity.RetryBudgetExhausted(maxAttempts, "provider timeout")
	rec.UpdatedAt = DefaultFirstSeen.Add(time.Duration(maxAttempts) * time.Minute)
	return rec
}

// RetryingRecord returns a record waiting on its next attempt after the
// given number of transient failures.
func RetryingRecord(channel entity.Channel, key string, attempts int) *entity.DeliveryRecord {
	rec := PendingRecord(channel, key)
	rec.State = entity.StatePendingRetry
	rec.AttemptCount = attempts
	rec.LastError = "provider timeout"
	rec.UpdatedAt = DefaultFirstSeen.Add(time.Duration(attempts) * time.Second)
	return rec
}

// RecordSet returns one record per channel in the given state builder,
// keyed "<prefix>-<channel>". Useful for listing and filter tests.
func RecordSet(prefix string, build func(entity.Channel, string) *entity.DeliveryRecord) []*entity.DeliveryRecord {
	channels := entity.Channels()
	records := make([]*entity.DeliveryRecord, 0, len(channels))
	for _, ch := range channels {
		records = append(records, build(ch, fmt.Sprintf("%s-%s", prefix, ch)))
	}
	return records
}
