package worker

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shared metrics instance so repeated loads in tests don't hit duplicate
// Prometheus registration.
var testWorkerMetrics = NewWorkerMetrics()

// loadWithEnv runs LoadConfigFromEnv with the given variables set and a
// captured log buffer.
func loadWithEnv(t *testing.T, env map[string]string) (*WorkerConfig, string) {
	t.Helper()

	for _, key := range []string{"SWEEP_SCHEDULE", "WORKER_TIMEZONE", "STALE_LEASE",
		"RETENTION_PERIOD", "SWEEP_TIMEOUT", "WORKER_HEALTH_PORT"} {
		t.Setenv(key, env[key])
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg, err := LoadConfigFromEnv(logger, testWorkerMetrics)
	require.NoError(t, err, "loading is fail-open and must never error")
	require.NotNil(t, cfg)
	return cfg, buf.String()
}

func fallbackCount(logs string) int {
	return strings.Count(logs, "Configuration fallback applied")
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, WorkerConfig{
		SweepSchedule:   "*/5 * * * *",
		Timezone:        "UTC",
		StaleLease:      15 * time.Minute,
		RetentionPeriod: 168 * time.Hour,
		SweepTimeout:    time.Minute,
		HealthPort:      9091,
	}, DefaultConfig())
}

func TestDefaultConfigIsACopy(t *testing.T) {
	first := DefaultConfig()
	first.SweepSchedule = "*/1 * * * *"
	first.StaleLease = 30 * time.Minute

	assert.Equal(t, "*/5 * * * *", DefaultConfig().SweepSchedule)
	assert.Equal(t, 15*time.Minute, DefaultConfig().StaleLease)
}

func TestWorkerConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("custom config is valid", func(t *testing.T) {
		cfg := WorkerConfig{
			SweepSchedule:   "*/1 * * * *",
			Timezone:        "Asia/Tokyo",
			StaleLease:      5 * time.Minute,
			RetentionPeriod: 24 * time.Hour,
			SweepTimeout:    30 * time.Second,
			HealthPort:      8080,
		}
		assert.NoError(t, cfg.Validate())
	})

	mutations := []struct {
		name   string
		mutate func(*WorkerConfig)
	}{
		{"garbled cron", func(c *WorkerConfig) { c.SweepSchedule = "invalid cron" }},
		{"empty cron", func(c *WorkerConfig) { c.SweepSchedule = "" }},
		{"bogus timezone", func(c *WorkerConfig) { c.Timezone = "Invalid/Timezone" }},
		{"empty timezone", func(c *WorkerConfig) { c.Timezone = "" }},
		{"zero lease", func(c *WorkerConfig) { c.StaleLease = 0 }},
		{"negative lease", func(c *WorkerConfig) { c.StaleLease = -time.Minute }},
		{"zero retention", func(c *WorkerConfig) { c.RetentionPeriod = 0 }},
		{"negative retention", func(c *WorkerConfig) { c.RetentionPeriod = -time.Hour }},
		{"zero sweep timeout", func(c *WorkerConfig) { c.SweepTimeout = 0 }},
		{"privileged port", func(c *WorkerConfig) { c.HealthPort = 1023 }},
		{"port above 65535", func(c *WorkerConfig) { c.HealthPort = 65536 }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("port boundaries", func(t *testing.T) {
		for port, ok := range map[int]bool{1024: true, 65535: true, 0: false, -1: false} {
			cfg := DefaultConfig()
			cfg.HealthPort = port
			if ok {
				assert.NoError(t, cfg.Validate(), "port %d", port)
			} else {
				assert.Error(t, cfg.Validate(), "port %d", port)
			}
		}
	})

	t.Run("all fields bad aggregates errors", func(t *testing.T) {
		cfg := WorkerConfig{
			SweepSchedule: "invalid",
			Timezone:      "Invalid/Zone",
			HealthPort:    100,
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestLoadConfigFromEnv_AllValid(t *testing.T) {
	cfg, logs := loadWithEnv(t, map[string]string{
		"SWEEP_SCHEDULE":     "*/10 * * * *",
		"WORKER_TIMEZONE":    "Asia/Tokyo",
		"STALE_LEASE":        "30m",
		"RETENTION_PERIOD":   "72h",
		"SWEEP_TIMEOUT":      "2m",
		"WORKER_HEALTH_PORT": "8080",
	})

	assert.Equal(t, "*/10 * * * *", cfg.SweepSchedule)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.StaleLease)
	assert.Equal(t, 72*time.Hour, cfg.RetentionPeriod)
	assert.Equal(t, 2*time.Minute, cfg.SweepTimeout)
	assert.Equal(t, 8080, cfg.HealthPort)
	assert.Zero(t, fallbackCount(logs))
}

func TestLoadConfigFromEnv_AllUnset(t *testing.T) {
	cfg, logs := loadWithEnv(t, nil)

	// Unset variables are not fallbacks, so nothing is warned
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Zero(t, fallbackCount(logs))
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantField string
	}{
		{"cron prose", map[string]string{"SWEEP_SCHEDULE": "invalid cron"}, "SweepSchedule"},
		{"nonexistent zone", map[string]string{"WORKER_TIMEZONE": "Invalid/Timezone"}, "Timezone"},
		{"lease below 1m", map[string]string{"STALE_LEASE": "30s"}, "StaleLease"},
		{"lease above 24h", map[string]string{"STALE_LEASE": "25h"}, "StaleLease"},
		{"negative lease", map[string]string{"STALE_LEASE": "-1m"}, "StaleLease"},
		{"retention below 1h", map[string]string{"RETENTION_PERIOD": "30m"}, "RetentionPeriod"},
		{"retention above 90d", map[string]string{"RETENTION_PERIOD": "2161h"}, "RetentionPeriod"},
		{"unparseable retention", map[string]string{"RETENTION_PERIOD": "forever"}, "RetentionPeriod"},
		{"sweep timeout below 5s", map[string]string{"SWEEP_TIMEOUT": "1s"}, "SweepTimeout"},
		{"sweep timeout above 30m", map[string]string{"SWEEP_TIMEOUT": "31m"}, "SweepTimeout"},
		{"privileged health port", map[string]string{"WORKER_HEALTH_PORT": "1023"}, "HealthPort"},
		{"non-numeric health port", map[string]string{"WORKER_HEALTH_PORT": "abc"}, "HealthPort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, logs := loadWithEnv(t, tt.env)

			assert.Equal(t, DefaultConfig(), *cfg, "invalid value must degrade to defaults")
			assert.Equal(t, 1, fallbackCount(logs))
			assert.Contains(t, logs, tt.wantField)
		})
	}
}

func TestLoadConfigFromEnv_EveryFieldBad(t *testing.T) {
	cfg, logs := loadWithEnv(t, map[string]string{
		"SWEEP_SCHEDULE":     "invalid",
		"WORKER_TIMEZONE":    "Invalid/Zone",
		"STALE_LEASE":        "invalid",
		"RETENTION_PERIOD":   "invalid",
		"SWEEP_TIMEOUT":      "invalid",
		"WORKER_HEALTH_PORT": "100",
	})

	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Equal(t, 6, fallbackCount(logs))
}

func TestLoadConfigFromEnv_MixedValidity(t *testing.T) {
	cfg, logs := loadWithEnv(t, map[string]string{
		"SWEEP_SCHEDULE":     "*/10 * * * *",
		"WORKER_TIMEZONE":    "Invalid/Zone",
		"STALE_LEASE":        "30m",
		"RETENTION_PERIOD":   "invalid",
		"SWEEP_TIMEOUT":      "2m",
		"WORKER_HEALTH_PORT": "8080",
	})

	// The good values stick
	assert.Equal(t, "*/10 * * * *", cfg.SweepSchedule)
	assert.Equal(t, 30*time.Minute, cfg.StaleLease)
	assert.Equal(t, 2*time.Minute, cfg.SweepTimeout)
	assert.Equal(t, 8080, cfg.HealthPort)

	// The bad ones degrade individually
	assert.Equal(t, DefaultConfig().Timezone, cfg.Timezone)
	assert.Equal(t, DefaultConfig().RetentionPeriod, cfg.RetentionPeriod)
	assert.Equal(t, 2, fallbackCount(logs))
}
