package worker

import (
	"fmt"
	"log/slog"
	"time"

	"notify-dispatch/internal/pkg/config"
)

// WorkerConfig controls the maintenance worker: the sweep schedule and
// timezone, the delivery lease, the retention window, the per-sweep
// timeout, and the health endpoint port.
//
// Loading is fail-open: LoadConfigFromEnv never returns an error, it
// falls back to DefaultConfig values field by field and records every
// fallback in metrics, so a typo in one variable cannot keep the worker
// from starting.
type WorkerConfig struct {
	// SweepSchedule is a 5-field cron expression. Default "*/5 * * * *".
	SweepSchedule string

	// Timezone is the IANA zone the cron schedule is evaluated in.
	Timezone string

	// StaleLease is how long a record may sit in a non-terminal state
	// (pending, sending, pending_retry) without an update before the
	// stale sweep force-fails it. Envelopes are not persisted, so a
	// record orphaned by process loss can never complete on its own; the
	// lease bounds how long callers see it as in-flight. The 1m floor
	// keeps it well clear of the sub-second deferral timers.
	StaleLease time.Duration

	// RetentionPeriod is how long succeeded and failed records are kept
	// before the retention sweep purges them.
	RetentionPeriod time.Duration

	// SweepTimeout bounds each sweep run; the sweep's store calls are
	// cancelled when it elapses.
	SweepTimeout time.Duration

	// HealthPort is the listen port for /health and /health/ready.
	// Unprivileged range only (1024-65535).
	HealthPort int
}

// DefaultConfig returns the production defaults: sweep every 5 minutes in
// UTC, a 15-minute lease (well above the longest send timeout, so only
// genuinely orphaned records are failed), 7 days of terminal-record
// retention, a 1-minute sweep budget, and health on 9091.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		SweepSchedule:   "*/5 * * * *",
		Timezone:        "UTC",
		StaleLease:      15 * time.Minute,
		RetentionPeriod: 168 * time.Hour,
		SweepTimeout:    time.Minute,
		HealthPort:      9091,
	}
}

// Validate checks every field and aggregates the failures, so an operator
// sees all the problems in one pass rather than one per restart.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("sweep schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.StaleLease); err != nil {
		errs = append(errs, fmt.Errorf("stale lease: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RetentionPeriod); err != nil {
		errs = append(errs, fmt.Errorf("retention period: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.SweepTimeout); err != nil {
		errs = append(errs, fmt.Errorf("sweep timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv builds a WorkerConfig from the environment:
//
//	SWEEP_SCHEDULE      cron expression            (default "*/5 * * * *")
//	WORKER_TIMEZONE     IANA zone name             (default "UTC")
//	STALE_LEASE         duration, 1m-24h           (default 15m)
//	RETENTION_PERIOD    duration, 1h-2160h         (default 168h)
//	SWEEP_TIMEOUT       duration, 5s-30m           (default 1m)
//	WORKER_HEALTH_PORT  integer, 1024-65535        (default 9091)
//
// Invalid or out-of-range values fall back to the default for that field;
// the fallback is logged and counted, and the returned error is always nil.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	anyFallback := false

	// noteFallback は1フィールド分のフォールバックを記録する
	noteFallback := func(field, metricField string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		anyFallback = true
		metrics.RecordValidationError(metricField)
		metrics.RecordFallback(metricField, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	res := config.LoadEnvWithFallback("SWEEP_SCHEDULE", cfg.SweepSchedule, config.ValidateCronSchedule)
	cfg.SweepSchedule = res.Value.(string)
	noteFallback("SweepSchedule", "sweep_schedule", res)

	res = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = res.Value.(string)
	noteFallback("Timezone", "timezone", res)

	res = config.LoadEnvDuration("STALE_LEASE", cfg.StaleLease, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Minute, 24*time.Hour)
	})
	cfg.StaleLease = res.Value.(time.Duration)
	noteFallback("StaleLease", "stale_lease", res)

	res = config.LoadEnvDuration("RETENTION_PERIOD", cfg.RetentionPeriod, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Hour, 2160*time.Hour)
	})
	cfg.RetentionPeriod = res.Value.(time.Duration)
	noteFallback("RetentionPeriod", "retention_period", res)

	res = config.LoadEnvDuration("SWEEP_TIMEOUT", cfg.SweepTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 5*time.Second, 30*time.Minute)
	})
	cfg.SweepTimeout = res.Value.(time.Duration)
	noteFallback("SweepTimeout", "sweep_timeout", res)

	res = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = res.Value.(int)
	noteFallback("HealthPort", "health_port", res)

	metrics.SetFallbackActive(anyFallback)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
