package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "notify-dispatch/internal/pkg/config"
)

// DispatchConfig is the resolved configuration for the dispatch service.
// It is built from the YAML file named by DISPATCH_CONFIG_FILE, with
// per-field fallback to defaults when the file is missing or a value is
// invalid (fail-open). Instances are immutable after loading.
type DispatchConfig struct {
	Dispatcher DispatcherConfig
	Channels   map[string]ChannelConfig
	Events     EventsConfig
}

// DispatcherConfig holds dispatcher-wide execution settings.
type DispatcherConfig struct {
	// MaxConcurrent is the maximum number of delivery attempts
	// executing at the same time across all channels.
	// Range: 1-256
	// Default: 16
	MaxConcurrent int

	// QueueAcquireTimeout is how long an accepted request waits for a
	// worker slot before the attempt is deferred.
	// Default: 2 seconds
	QueueAcquireTimeout time.Duration
}

// ChannelConfig holds per-channel delivery settings.
type ChannelConfig struct {
	// Enabled controls whether the channel accepts requests.
	// Submissions for a disabled channel are rejected.
	Enabled bool

	// MaxAttempts is the delivery attempt budget including the first try.
	// Range: 1-20
	MaxAttempts int

	// BaseBackoff is the delay before the first retry. Subsequent retries
	// double the delay up to MaxBackoff.
	BaseBackoff time.Duration

	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration

	// RateLimitCapacity is the token bucket burst size.
	RateLimitCapacity int

	// RateLimitRefillPerSec is the token refill rate. Must be positive
	// so deferred sends eventually drain.
	RateLimitRefillPerSec float64

	// RateLimitDeferDelay is the pause before re-attempting a send that
	// was deferred by the local rate limiter.
	RateLimitDeferDelay time.Duration

	// SenderIdentity is the from-address for this channel: an E.164
	// number for sms/whatsapp, a mailbox address for email.
	SenderIdentity string

	// SendTimeout bounds a single provider call.
	SendTimeout time.Duration

	// Provider carries vendor endpoint and credential indirection.
	Provider ProviderConfig
}

// ProviderConfig identifies the upstream vendor for a channel.
// Credentials are never stored in the file; the *_env fields name the
// environment variables that hold them, resolved at adapter construction.
type ProviderConfig struct {
	// BaseURL is the REST API root for sms/whatsapp vendors.
	BaseURL string

	// AccountSIDEnv names the env var holding the vendor account id.
	AccountSIDEnv string

	// AuthTokenEnv names the env var holding the vendor auth token.
	AuthTokenEnv string

	// SMTPHost and SMTPPort locate the mail relay for email.
	SMTPHost string
	SMTPPort int

	// UsernameEnv and PasswordEnv name the env vars for SMTP PLAIN auth.
	// When both resolve to empty, the adapter connects unauthenticated.
	UsernameEnv string
	PasswordEnv string

	// TemplateID is an optional vendor template passed through on
	// whatsapp sends.
	TemplateID string
}

// EventsConfig controls the delivery event stream.
type EventsConfig struct {
	// Brokers is the Kafka broker list. Empty disables event publishing.
	Brokers []string

	// Topic receives delivery state transition events.
	// Default: "delivery-events"
	Topic string
}

// dispatchFile mirrors the YAML document layout. Durations are strings
// ("500ms", "1m") and parsed during normalization so a bad value can fall
// back per-field instead of failing the whole document.
type dispatchFile struct {
	Dispatcher struct {
		MaxConcurrent       int    `yaml:"max_concurrent"`
		QueueAcquireTimeout string `yaml:"queue_acquire_timeout"`
	} `yaml:"dispatcher"`
	Channels map[string]channelFile `yaml:"channels"`
	Events   struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"events"`
}

type channelFile struct {
	Enabled               *bool        `yaml:"enabled"`
	MaxAttempts           int          `yaml:"max_attempts"`
	BaseBackoff           string       `yaml:"base_backoff"`
	MaxBackoff            string       `yaml:"max_backoff"`
	RateLimitCapacity     int          `yaml:"rate_limit_capacity"`
	RateLimitRefillPerSec float64      `yaml:"rate_limit_refill_per_sec"`
	RateLimitDeferDelay   string       `yaml:"rate_limit_defer_delay"`
	SenderIdentity        string       `yaml:"sender_identity"`
	SendTimeout           string       `yaml:"send_timeout"`
	Provider              providerFile `yaml:"provider"`
}

type providerFile struct {
	BaseURL       string `yaml:"base_url"`
	AccountSIDEnv string `yaml:"account_sid_env"`
	AuthTokenEnv  string `yaml:"auth_token_env"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	UsernameEnv   string `yaml:"username_env"`
	PasswordEnv   string `yaml:"password_env"`
	TemplateID    string `yaml:"template_id"`
}

// DefaultDispatchConfig returns the configuration used when no file is
// present: all three channels enabled with vendor defaults, 16 concurrent
// attempts, events disabled.
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		Dispatcher: DispatcherConfig{
			MaxConcurrent:       16,
			QueueAcquireTimeout: 2 * time.Second,
		},
		Channels: defaultChannelConfigs(),
		Events: EventsConfig{
			Brokers: nil,
			Topic:   "delivery-events",
		},
	}
}

func defaultChannelConfigs() map[string]ChannelConfig {
	return map[string]ChannelConfig{
		"sms": {
			Enabled:               true,
			MaxAttempts:           5,
			BaseBackoff:           500 * time.Millisecond,
			MaxBackoff:            30 * time.Second,
			RateLimitCapacity:     10,
			RateLimitRefillPerSec: 5,
			RateLimitDeferDelay:   200 * time.Millisecond,
			SendTimeout:           10 * time.Second,
			Provider: ProviderConfig{
				BaseURL:       "https://api.twilio.com/2010-04-01",
				AccountSIDEnv: "SMS_ACCOUNT_SID",
				AuthTokenEnv:  "SMS_AUTH_TOKEN",
			},
		},
		"whatsapp": {
			Enabled:               true,
			MaxAttempts:           5,
			BaseBackoff:           500 * time.Millisecond,
			MaxBackoff:            30 * time.Second,
			RateLimitCapacity:     10,
			RateLimitRefillPerSec: 5,
			RateLimitDeferDelay:   200 * time.Millisecond,
			SendTimeout:           10 * time.Second,
			Provider: ProviderConfig{
				BaseURL:       "https://api.twilio.com/2010-04-01",
				AccountSIDEnv: "WHATSAPP_ACCOUNT_SID",
				AuthTokenEnv:  "WHATSAPP_AUTH_TOKEN",
			},
		},
		"email": {
			Enabled:               true,
			MaxAttempts:           5,
			BaseBackoff:           1 * time.Second,
			MaxBackoff:            60 * time.Second,
			RateLimitCapacity:     50,
			RateLimitRefillPerSec: 10,
			RateLimitDeferDelay:   200 * time.Millisecond,
			SendTimeout:           30 * time.Second,
			Provider: ProviderConfig{
				SMTPHost:    "localhost",
				SMTPPort:    587,
				UsernameEnv: "SMTP_USERNAME",
				PasswordEnv: "SMTP_PASSWORD",
			},
		},
	}
}

// LoadDispatchConfig loads the service configuration following the
// fail-open strategy:
//  1. Resolve the file path from DISPATCH_CONFIG_FILE.
//  2. Missing or unreadable file: return DefaultDispatchConfig with a warning.
//  3. Per field: invalid values fall back to the channel default, each
//     fallback logged and counted on the supplied metrics.
//
// The returned config is always non-nil and always valid.
func LoadDispatchConfig(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) *DispatchConfig {
	path := os.Getenv("DISPATCH_CONFIG_FILE")
	if path == "" {
		logger.Info("DISPATCH_CONFIG_FILE not set, using default configuration")
		metrics.RecordLoadTimestamp()
		return DefaultDispatchConfig()
	}
	return LoadDispatchConfigFromFile(path, logger, metrics)
}

// LoadDispatchConfigFromFile loads and normalizes the YAML document at path.
// The path is expected to come from a trusted source (env var or CLI arg).
func LoadDispatchConfigFromFile(path string, logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) *DispatchConfig {
	defer metrics.RecordLoadTimestamp()

	// #nosec G304 -- path is provided by trusted source (env var or CLI arg), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("dispatch config file unreadable, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))
		metrics.RecordFallback("config_file", "default")
		metrics.SetFallbackActive(true)
		return DefaultDispatchConfig()
	}

	var file dispatchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		logger.Warn("dispatch config file unparseable, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))
		metrics.RecordFallback("config_file", "default")
		metrics.SetFallbackActive(true)
		return DefaultDispatchConfig()
	}

	n := &normalizer{logger: logger, metrics: metrics}
	cfg := DefaultDispatchConfig()

	// Dispatcher settings.
	if file.Dispatcher.MaxConcurrent != 0 {
		if err := pkgconfig.ValidateIntRange(file.Dispatcher.MaxConcurrent, 1, 256); err != nil {
			n.fallback("dispatcher_max_concurrent", err)
		} else {
			cfg.Dispatcher.MaxConcurrent = file.Dispatcher.MaxConcurrent
		}
	}
	cfg.Dispatcher.QueueAcquireTimeout = n.duration(
		"dispatcher_queue_acquire_timeout",
		file.Dispatcher.QueueAcquireTimeout,
		cfg.Dispatcher.QueueAcquireTimeout,
	)

	// Channel settings. Channels absent from the file keep their defaults;
	// unknown channel names are reported and ignored.
	for name, ch := range file.Channels {
		def, ok := cfg.Channels[name]
		if !ok {
			n.logger.Warn("unknown channel in dispatch config, ignoring",
				slog.String("channel", name))
			n.metrics.RecordValidationError("channel_" + name)
			continue
		}
		cfg.Channels[name] = n.channel(name, ch, def)
	}

	// Event stream settings.
	cfg.Events.Brokers = file.Events.Brokers
	if file.Events.Topic != "" {
		cfg.Events.Topic = file.Events.Topic
	}

	n.finish()
	return cfg
}

// normalizer applies per-field fallback with warning logs and metrics.
type normalizer struct {
	logger   *slog.Logger
	metrics  *pkgconfig.ConfigMetrics
	fellBack bool
}

func (n *normalizer) fallback(field string, err error) {
	n.fellBack = true
	n.metrics.RecordValidationError(field)
	n.metrics.RecordFallback(field, "default")
	n.logger.Warn("Configuration fallback applied",
		slog.String("field", field),
		slog.String("error", err.Error()))
}

// duration parses a YAML duration string; empty keeps the default silently,
// unparseable or non-positive values fall back with a warning.
func (n *normalizer) duration(field, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		n.fallback(field, fmt.Errorf("invalid duration '%s': %w", raw, err))
		return def
	}
	if err := pkgconfig.ValidatePositiveDuration(d); err != nil {
		n.fallback(field, err)
		return def
	}
	return d
}

func (n *normalizer) channel(name string, in channelFile, def ChannelConfig) ChannelConfig {
	out := def

	if in.Enabled != nil {
		out.Enabled = *in.Enabled
	}

	if in.MaxAttempts != 0 {
		if err := pkgconfig.ValidateIntRange(in.MaxAttempts, 1, 20); err != nil {
			n.fallback(name+"_max_attempts", err)
		} else {
			out.MaxAttempts = in.MaxAttempts
		}
	}

	out.BaseBackoff = n.duration(name+"_base_backoff", in.BaseBackoff, def.BaseBackoff)
	out.MaxBackoff = n.duration(name+"_max_backoff", in.MaxBackoff, def.MaxBackoff)
	if out.MaxBackoff < out.BaseBackoff {
		n.fallback(name+"_max_backoff", fmt.Errorf(
			"max backoff %v is below base backoff %v", out.MaxBackoff, out.BaseBackoff))
		out.BaseBackoff = def.BaseBackoff
		out.MaxBackoff = def.MaxBackoff
	}

	if in.RateLimitCapacity != 0 {
		if err := pkgconfig.ValidateIntRange(in.RateLimitCapacity, 1, 10000); err != nil {
			n.fallback(name+"_rate_limit_capacity", err)
		} else {
			out.RateLimitCapacity = in.RateLimitCapacity
		}
	}

	if in.RateLimitRefillPerSec != 0 {
		// Zero refill would strand deferred sends, so it is rejected here
		// even though the limiter itself can represent it.
		if err := pkgconfig.ValidatePositiveFloat(in.RateLimitRefillPerSec); err != nil {
			n.fallback(name+"_rate_limit_refill_per_sec", err)
		} else {
			out.RateLimitRefillPerSec = in.RateLimitRefillPerSec
		}
	}

	out.RateLimitDeferDelay = n.duration(name+"_rate_limit_defer_delay", in.RateLimitDeferDelay, def.RateLimitDeferDelay)
	out.SendTimeout = n.duration(name+"_send_timeout", in.SendTimeout, def.SendTimeout)

	if in.SenderIdentity != "" {
		out.SenderIdentity = in.SenderIdentity
	}

	out.Provider = n.provider(in.Provider, def.Provider)
	return out
}

func (n *normalizer) provider(in providerFile, def ProviderConfig) ProviderConfig {
	out := def
	if in.BaseURL != "" {
		out.BaseURL = in.BaseURL
	}
	if in.AccountSIDEnv != "" {
		out.AccountSIDEnv = in.AccountSIDEnv
	}
	if in.AuthTokenEnv != "" {
		out.AuthTokenEnv = in.AuthTokenEnv
	}
	if in.SMTPHost != "" {
		out.SMTPHost = in.SMTPHost
	}
	if in.SMTPPort != 0 {
		if err := pkgconfig.ValidateIntRange(in.SMTPPort, 1, 65535); err != nil {
			n.fallback("smtp_port", err)
		} else {
			out.SMTPPort = in.SMTPPort
		}
	}
	if in.UsernameEnv != "" {
		out.UsernameEnv = in.UsernameEnv
	}
	if in.PasswordEnv != "" {
		out.PasswordEnv = in.PasswordEnv
	}
	if in.TemplateID != "" {
		out.TemplateID = in.TemplateID
	}
	return out
}

func (n *normalizer) finish() {
	n.metrics.SetFallbackActive(n.fellBack)
}

// Channel returns the settings for the named channel.
// The second return is false for channels the service does not know.
func (c *DispatchConfig) Channel(name string) (ChannelConfig, bool) {
	ch, ok := c.Channels[name]
	return ch, ok
}

// EnabledChannels lists the channel names currently accepting requests.
func (c *DispatchConfig) EnabledChannels() []string {
	names := make([]string, 0, len(c.Channels))
	for name, ch := range c.Channels {
		if ch.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// EventsEnabled reports whether a Kafka event stream is configured.
func (c *DispatchConfig) EventsEnabled() bool {
	return len(c.Events.Brokers) > 0
}
