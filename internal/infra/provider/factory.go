package provider

import (
	"fmt"
	"log/slog"

	"notify-dispatch/internal/config"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/usecase/dispatch"
)

// ForChannel builds the adapter for a channel from its configuration. When
// the provider cannot be constructed, typically because credentials are not
// set, the noop adapter takes its place so the pipeline still runs locally.
func ForChannel(channel entity.Channel, cfg config.ChannelConfig) dispatch.ChannelAdapter {
	adapter, err := build(channel, cfg)
	if err != nil {
		slog.Warn("Provider not configured, using noop adapter",
			slog.String("channel", string(channel)),
			slog.String("reason", err.Error()))
		return NewNoopProvider(channel)
	}
	return adapter
}

func build(channel entity.Channel, cfg config.ChannelConfig) (dispatch.ChannelAdapter, error) {
	switch channel {
	case entity.ChannelSMS:
		return NewSMSProvider(cfg.Provider, cfg.SendTimeout)
	case entity.ChannelWhatsApp:
		return NewWhatsAppProvider(cfg.Provider, cfg.SendTimeout)
	case entity.ChannelEmail:
		return NewEmailProvider(cfg.Provider)
	default:
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
}
