package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "notify-dispatch/internal/pkg/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "dispatch-config-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "dispatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDispatchConfigFromFile_FullDocument(t *testing.T) {
	path := writeConfigFile(t, `dispatcher:
  max_concurrent: 32
  queue_acquire_timeout: 5s
channels:
  sms:
    enabled: true
    max_attempts: 3
    base_backoff: 250ms
    max_backoff: 10s
    rate_limit_capacity: 20
    rate_limit_refill_per_sec: 2.5
    rate_limit_defer_delay: 100ms
    sender_identity: "+15005550006"
    send_timeout: 8s
    provider:
      base_url: https://sms.vendor.example
      account_sid_env: VENDOR_SID
      auth_token_env: VENDOR_TOKEN
  email:
    sender_identity: noreply@example.com
    provider:
      smtp_host: mail.example.com
      smtp_port: 2525
  whatsapp:
    enabled: false
events:
  brokers:
    - kafka-1:9092
    - kafka-2:9092
  topic: deliveries
`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_full")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)
	require.NotNil(t, cfg)

	assert.Equal(t, 32, cfg.Dispatcher.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.Dispatcher.QueueAcquireTimeout)

	sms, ok := cfg.Channel("sms")
	require.True(t, ok)
	assert.True(t, sms.Enabled)
	assert.Equal(t, 3, sms.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, sms.BaseBackoff)
	assert.Equal(t, 10*time.Second, sms.MaxBackoff)
	assert.Equal(t, 20, sms.RateLimitCapacity)
	assert.Equal(t, 2.5, sms.RateLimitRefillPerSec)
	assert.Equal(t, 100*time.Millisecond, sms.RateLimitDeferDelay)
	assert.Equal(t, "+15005550006", sms.SenderIdentity)
	assert.Equal(t, 8*time.Second, sms.SendTimeout)
	assert.Equal(t, "https://sms.vendor.example", sms.Provider.BaseURL)
	assert.Equal(t, "VENDOR_SID", sms.Provider.AccountSIDEnv)
	assert.Equal(t, "VENDOR_TOKEN", sms.Provider.AuthTokenEnv)

	email, ok := cfg.Channel("email")
	require.True(t, ok)
	assert.Equal(t, "noreply@example.com", email.SenderIdentity)
	assert.Equal(t, "mail.example.com", email.Provider.SMTPHost)
	assert.Equal(t, 2525, email.Provider.SMTPPort)
	// Fields absent from the file keep channel defaults
	assert.Equal(t, 5, email.MaxAttempts)
	assert.Equal(t, 1*time.Second, email.BaseBackoff)

	whatsapp, ok := cfg.Channel("whatsapp")
	require.True(t, ok)
	assert.False(t, whatsapp.Enabled)

	assert.True(t, cfg.EventsEnabled())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "deliveries", cfg.Events.Topic)

	// Nothing fell back
	assert.NotContains(t, buf.String(), "Configuration fallback applied")
}

func TestLoadDispatchConfigFromFile_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_missing_file")

	cfg := LoadDispatchConfigFromFile("/nonexistent/dispatch.yaml", logger, metrics)
	require.NotNil(t, cfg)

	// Full defaults apply
	assert.Equal(t, 16, cfg.Dispatcher.MaxConcurrent)
	assert.Len(t, cfg.Channels, 3)
	assert.False(t, cfg.EventsEnabled())
	assert.Equal(t, "delivery-events", cfg.Events.Topic)

	assert.Contains(t, buf.String(), "dispatch config file unreadable")
}

func TestLoadDispatchConfigFromFile_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "channels: [not, a, map\n")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_bad_yaml")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)
	require.NotNil(t, cfg)

	assert.Equal(t, 16, cfg.Dispatcher.MaxConcurrent)
	assert.Contains(t, buf.String(), "dispatch config file unparseable")
}

func TestLoadDispatchConfig_EnvUnset(t *testing.T) {
	t.Setenv("DISPATCH_CONFIG_FILE", "")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_env_unset")

	cfg := LoadDispatchConfig(logger, metrics)
	require.NotNil(t, cfg)

	assert.Equal(t, 16, cfg.Dispatcher.MaxConcurrent)
	assert.Contains(t, buf.String(), "DISPATCH_CONFIG_FILE not set")
}

func TestLoadDispatchConfig_EnvSet(t *testing.T) {
	path := writeConfigFile(t, `dispatcher:
  max_concurrent: 8
`)
	t.Setenv("DISPATCH_CONFIG_FILE", path)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_env_set")

	cfg := LoadDispatchConfig(logger, metrics)
	require.NotNil(t, cfg)

	assert.Equal(t, 8, cfg.Dispatcher.MaxConcurrent)
}

func TestLoadDispatchConfigFromFile_FieldFallbacks(t *testing.T) {
	path := writeConfigFile(t, `dispatcher:
  max_concurrent: 9999
  queue_acquire_timeout: soon
channels:
  sms:
    max_attempts: 50
    base_backoff: -1s
    rate_limit_capacity: -3
    rate_limit_refill_per_sec: -2.5
`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_fallbacks")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)
	require.NotNil(t, cfg)

	// Every invalid field falls back to its default
	assert.Equal(t, 16, cfg.Dispatcher.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Dispatcher.QueueAcquireTimeout)

	sms, _ := cfg.Channel("sms")
	assert.Equal(t, 5, sms.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, sms.BaseBackoff)
	assert.Equal(t, 10, sms.RateLimitCapacity)
	assert.Equal(t, 5.0, sms.RateLimitRefillPerSec)

	assert.Contains(t, buf.String(), "Configuration fallback applied")
	assert.Contains(t, buf.String(), "sms_max_attempts")
	assert.Contains(t, buf.String(), "sms_rate_limit_refill_per_sec")
}

func TestLoadDispatchConfigFromFile_BackoffOrdering(t *testing.T) {
	path := writeConfigFile(t, `channels:
  email:
    base_backoff: 2m
    max_backoff: 10s
`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_backoff_order")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)

	// max below base resets the pair to channel defaults
	email, _ := cfg.Channel("email")
	assert.Equal(t, 1*time.Second, email.BaseBackoff)
	assert.Equal(t, 60*time.Second, email.MaxBackoff)
	assert.Contains(t, buf.String(), "email_max_backoff")
}

func TestLoadDispatchConfigFromFile_UnknownChannel(t *testing.T) {
	path := writeConfigFile(t, `channels:
  pager:
    max_attempts: 3
`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_unknown_channel")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)

	_, ok := cfg.Channel("pager")
	assert.False(t, ok)
	assert.Len(t, cfg.Channels, 3)
	assert.Contains(t, buf.String(), "unknown channel in dispatch config")
}

func TestDispatchConfig_EnabledChannels(t *testing.T) {
	path := writeConfigFile(t, `channels:
  sms:
    enabled: false
  whatsapp:
    enabled: false
`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := pkgconfig.NewConfigMetrics("test_dispatch_enabled")

	cfg := LoadDispatchConfigFromFile(path, logger, metrics)

	enabled := cfg.EnabledChannels()
	assert.Equal(t, []string{"email"}, enabled)
}

func TestDefaultDispatchConfig_AllChannelsValid(t *testing.T) {
	cfg := DefaultDispatchConfig()

	require.Len(t, cfg.Channels, 3)
	for name, ch := range cfg.Channels {
		assert.True(t, ch.Enabled, "channel %s should be enabled by default", name)
		assert.Greater(t, ch.MaxAttempts, 0, "channel %s", name)
		assert.Greater(t, ch.RateLimitCapacity, 0, "channel %s", name)
		assert.Greater(t, ch.RateLimitRefillPerSec, 0.0, "channel %s", name)
		assert.Greater(t, ch.MaxBackoff, ch.BaseBackoff, "channel %s", name)
		assert.Greater(t, ch.SendTimeout, time.Duration(0), "channel %s", name)
	}
}
