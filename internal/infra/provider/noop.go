package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/usecase/dispatch"
)

// NoopProvider accepts every send without contacting a vendor. It stands in
// for channels whose provider credentials are absent, so local environments
// exercise the full delivery pipeline without external calls.
// This follows the Null Object pattern.
type NoopProvider struct {
	channel entity.Channel
}

// NewNoopProvider creates a no-op adapter for the given channel.
func NewNoopProvider(channel entity.Channel) *NoopProvider {
	return &NoopProvider{channel: channel}
}

// Channel implements dispatch.ChannelAdapter.
func (p *NoopProvider) Channel() entity.Channel {
	return p.channel
}

// Ready implements dispatch.ChannelAdapter. Always true.
func (p *NoopProvider) Ready() bool {
	return true
}

// Send implements dispatch.ChannelAdapter. It logs the envelope and
// fabricates a message id so deliveries still complete end to end.
func (p *NoopProvider) Send(_ context.Context, env entity.Envelope) (dispatch.SendResult, error) {
	id := "noop-" + uuid.NewString()
	slog.Info("Noop send",
		slog.String("channel", string(p.channel)),
		slog.String("idempotency_key", env.IdempotencyKey),
		slog.String("recipient", env.Recipient),
		slog.String("provider_message_id", id))
	return dispatch.SendResult{ProviderMessageID: id}, nil
}
