package config

import (
	"log/slog"
	"time"
)

// QuotaConfig holds per-caller admission quota settings for the
// submission API. The quota bounds how fast a single caller (keyed by
// client IP) may submit notifications; it is independent of the
// per-channel provider rate limits inside the dispatch pipeline.
type QuotaConfig struct {
	// Enabled controls whether the quota middleware is installed.
	Enabled bool

	// RequestsPerSec is the sustained per-caller submission rate.
	RequestsPerSec float64

	// Burst is the per-caller token bucket capacity.
	Burst int

	// MaxKeys caps the number of tracked callers.
	MaxKeys int

	// IdleTTL is how long an idle caller's bucket is kept.
	IdleTTL time.Duration

	// PruneInterval is how often idle buckets are swept.
	PruneInterval time.Duration
}

// LoadQuotaConfig loads admission quota configuration from environment variables.
//
// This function reads all quota configuration from environment variables
// and returns a validated QuotaConfig. If any values are invalid, it logs
// warnings and uses safe defaults instead of failing.
//
// Environment variables:
//   - QUOTA_ENABLED: Enable/disable the admission quota (default: true)
//   - QUOTA_REQUESTS_PER_SEC: Sustained per-caller rate (default: 5)
//   - QUOTA_BURST: Per-caller burst capacity (default: 10)
//   - QUOTA_MAX_KEYS: Maximum tracked callers in memory (default: 10000)
//   - QUOTA_IDLE_TTL: Idle caller retention (default: 10m)
//   - QUOTA_PRUNE_INTERVAL: Idle bucket sweep interval (default: 1m)
//
// Returns:
//   - *QuotaConfig: Validated configuration with defaults applied
//   - error: Always nil (validation failures result in warnings and defaults)
//
// Example:
//
//	config, err := LoadQuotaConfig()
//	if err != nil {
//	    return fmt.Errorf("failed to load quota config: %w", err)
//	}
func LoadQuotaConfig() (*QuotaConfig, error) {
	config := &QuotaConfig{}

	// Feature flag
	config.Enabled = GetEnvBool("QUOTA_ENABLED", true)

	rate := GetEnvFloat64("QUOTA_REQUESTS_PER_SEC", 5)
	if rate <= 0 {
		slog.Warn("invalid QUOTA_REQUESTS_PER_SEC, using default",
			slog.Float64("value", rate),
			slog.Float64("default", 5))
		rate = 5
	}
	config.RequestsPerSec = rate

	burst := GetEnvInt("QUOTA_BURST", 10)
	if burst <= 0 {
		slog.Warn("invalid QUOTA_BURST, using default",
			slog.Int("value", burst),
			slog.Int("default", 10))
		burst = 10
	}
	config.Burst = burst

	maxKeys := GetEnvInt("QUOTA_MAX_KEYS", 10000)
	if maxKeys <= 0 {
		slog.Warn("invalid QUOTA_MAX_KEYS, using default",
			slog.Int("value", maxKeys),
			slog.Int("default", 10000))
		maxKeys = 10000
	}
	config.MaxKeys = maxKeys

	idleTTL := GetEnvDuration("QUOTA_IDLE_TTL", 10*time.Minute)
	if err := ValidatePositiveDuration(idleTTL); err != nil {
		slog.Warn("invalid QUOTA_IDLE_TTL, using default",
			slog.String("value", idleTTL.String()),
			slog.String("default", "10m"),
			slog.String("error", err.Error()))
		idleTTL = 10 * time.Minute
	}
	config.IdleTTL = idleTTL

	pruneInterval := GetEnvDuration("QUOTA_PRUNE_INTERVAL", 1*time.Minute)
	if err := ValidatePositiveDuration(pruneInterval); err != nil {
		slog.Warn("invalid QUOTA_PRUNE_INTERVAL, using default",
			slog.String("value", pruneInterval.String()),
			slog.String("default", "1m"),
			slog.String("error", err.Error()))
		pruneInterval = 1 * time.Minute
	}
	config.PruneInterval = pruneInterval

	return config, nil
}
