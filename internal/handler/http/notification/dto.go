// Package notification provides HTTP handlers for notification endpoints.
// It includes handlers for submitting notifications and inspecting the
// resulting delivery records.
package notification

import (
	"time"

	"notify-dispatch/internal/domain/entity"
)

// SubmitRequest is the JSON body accepted by the submission endpoint.
type SubmitRequest struct {
	Channel        string `json:"channel" example:"sms"`
	Recipient      string `json:"recipient" example:"+15551234567"`
	Body           string `json:"body" example:"Your verification code is 123456"`
	TemplateID     string `json:"template_id,omitempty" example:"otp-v2"`
	IdempotencyKey string `json:"idempotency_key" example:"order-42-confirmation"`
	TimeoutMS      int64  `json:"timeout_ms,omitempty" example:"5000"`
}

// SubmitResponse reports the synchronous submission decision. Delivery is
// asynchronous; the final state is observable through the delivery
// endpoints.
type SubmitResponse struct {
	IdempotencyKey string `json:"idempotency_key" example:"order-42-confirmation"`
	Status         string `json:"status" example:"accepted"`
	State          string `json:"state,omitempty" example:"pending"`
	Duplicate      bool   `json:"duplicate" example:"false"`
}

// DTO represents the JSON structure for delivery record transfer.
type DTO struct {
	IdempotencyKey    string    `json:"idempotency_key" example:"order-42-confirmation"`
	Channel           string    `json:"channel" example:"sms"`
	State             string    `json:"state" example:"succeeded"`
	AttemptCount      int       `json:"attempt_count" example:"1"`
	LastError         string    `json:"last_error,omitempty" example:"provider timeout"`
	ProviderMessageID string    `json:"provider_message_id,omitempty" example:"SM0123456789abcdef0123456789abcdef"`
	FirstSeenAt       time.Time `json:"first_seen_at" example:"2025-10-26T12:00:00Z"`
	UpdatedAt         time.Time `json:"updated_at" example:"2025-10-26T12:00:05Z"`
}

// toDTO converts a delivery record into its transfer representation.
func toDTO(rec *entity.DeliveryRecord) DTO {
	return DTO{
		IdempotencyKey:    rec.IdempotencyKey,
		Channel:           rec.Channel.String(),
		State:             rec.State.String(),
		AttemptCount:      rec.AttemptCount,
		LastError:         rec.LastError,
		ProviderMessageID: rec.ProviderMessageID,
		FirstSeenAt:       rec.FirstSeenAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}
