package provider

import (
	"context"
	"time"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/resilience/circuitbreaker"
	"notify-dispatch/internal/usecase/dispatch"
)

// whatsappPrefix is the addressing scheme the messaging API expects for
// WhatsApp endpoints. Recipients arrive already prefixed by
// entity.NormalizeRecipient; only the sender needs it here.
const whatsappPrefix = "whatsapp:"

// WhatsAppProvider sends WhatsApp messages through the same messaging API
// as SMS; the two differ only in the address scheme.
type WhatsAppProvider struct {
	client  *messagingClient
	breaker *circuitbreaker.CircuitBreaker
}

// NewWhatsAppProvider builds the WhatsApp adapter from channel provider
// settings.
func NewWhatsAppProvider(cfg config.ProviderConfig, timeout time.Duration) (*WhatsAppProvider, error) {
	client, err := newMessagingClient(cfg, timeout)
	if err != nil {
		return nil, err
	}
	return &WhatsAppProvider{
		client:  client,
		breaker: circuitbreaker.New(circuitbreaker.ProviderConfig("whatsapp")),
	}, nil
}

// Channel implements dispatch.ChannelAdapter.
func (p *WhatsAppProvider) Channel() entity.Channel {
	return entity.ChannelWhatsApp
}

// Ready implements dispatch.ChannelAdapter.
func (p *WhatsAppProvider) Ready() bool {
	return !p.breaker.IsOpen()
}

// Send implements dispatch.ChannelAdapter.
func (p *WhatsAppProvider) Send(ctx context.Context, env entity.Envelope) (dispatch.SendResult, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.createMessage(ctx, whatsappPrefix+env.Sender, env.Recipient, env.Body)
	})
	if err != nil {
		return dispatch.SendResult{}, err
	}
	return dispatch.SendResult{ProviderMessageID: result.(string)}, nil
}
