package config

import (
	"cmp"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule checks a standard five-field cron expression
// ("minute hour day month weekday", e.g. "*/5 * * * *") with the same
// robfig/cron parser the maintenance worker scheduler uses.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks an IANA timezone name ("UTC", "Asia/Tokyo") via
// time.LoadLocation. Loading depends on tzdata being present in the runtime
// image; a missing tzdata package makes valid names fail here, which is
// exactly the signal an operator needs.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

func inRange[T cmp.Ordered](label string, value, min, max T) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if value < min {
		return fmt.Errorf("%s %v is below minimum %v", label, value, min)
	}
	if value > max {
		return fmt.Errorf("%s %v exceeds maximum %v", label, value, max)
	}
	return nil
}

// ValidateDuration checks that duration lies within [min, max] inclusive.
func ValidateDuration(duration, min, max time.Duration) error {
	return inRange("duration", duration, min, max)
}

// ValidateIntRange checks that value lies within [min, max] inclusive.
func ValidateIntRange(value, min, max int) error {
	return inRange("value", value, min, max)
}

// ValidatePositiveDuration rejects zero and negative durations. Timeouts,
// backoff bases, and leases treat zero as "disabled" or "infinite" rather
// than a usable value.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidatePositiveFloat rejects zero and negative floats. A zero token
// bucket refill rate would leave deferred sends parked forever once the
// bucket drains.
func ValidatePositiveFloat(value float64) error {
	if value <= 0 {
		return fmt.Errorf("value must be positive, got %g", value)
	}
	return nil
}

// ValidateFraction checks that value lies within [0, 1], for jitter fractions.
func ValidateFraction(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("value must be within [0, 1], got %g", value)
	}
	return nil
}
