package provider

import (
	"context"
	"log/slog"
	"time"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/resilience/circuitbreaker"
	"notify-dispatch/internal/usecase/dispatch"
	"notify-dispatch/internal/utils/text"
)

// SMSProvider sends text messages through a Twilio-style messaging API.
type SMSProvider struct {
	client  *messagingClient
	breaker *circuitbreaker.CircuitBreaker
}

// NewSMSProvider builds the SMS adapter from channel provider settings.
func NewSMSProvider(cfg config.ProviderConfig, timeout time.Duration) (*SMSProvider, error) {
	client, err := newMessagingClient(cfg, timeout)
	if err != nil {
		return nil, err
	}
	return &SMSProvider{
		client:  client,
		breaker: circuitbreaker.New(circuitbreaker.ProviderConfig("sms")),
	}, nil
}

// Channel implements dispatch.ChannelAdapter.
func (p *SMSProvider) Channel() entity.Channel {
	return entity.ChannelSMS
}

// Ready implements dispatch.ChannelAdapter.
func (p *SMSProvider) Ready() bool {
	return !p.breaker.IsOpen()
}

// Send implements dispatch.ChannelAdapter. The body's segment count is
// recorded before the call because vendors bill per segment, not per
// message.
func (p *SMSProvider) Send(ctx context.Context, env entity.Envelope) (dispatch.SendResult, error) {
	if seg := text.CountSegments(env.Body); seg.Count > 0 {
		metrics.RecordMessageSegments(seg.Encoding, seg.Count)
		if seg.Count > 1 {
			slog.Debug("Sending multipart SMS",
				slog.String("idempotency_key", env.IdempotencyKey),
				slog.String("encoding", seg.Encoding),
				slog.Int("segments", seg.Count))
		}
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.createMessage(ctx, env.Sender, env.Recipient, env.Body)
	})
	if err != nil {
		return dispatch.SendResult{}, err
	}
	return dispatch.SendResult{ProviderMessageID: result.(string)}, nil
}
