package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is what every loader in this package returns: the
// effective value, any warnings, and whether the default had to be used.
// Loading never aborts startup; a bad value degrades to the default with
// a warning the caller is expected to log and count.
//
//	result := LoadEnvDuration("DELIVERY_LEASE", 5*time.Minute, ValidatePositiveDuration)
//	lease := result.Value.(time.Duration)
//	if result.FallbackApplied { ... log result.Warnings ... }
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// loaded returns a result carrying a successfully loaded value.
func loaded(v interface{}) ConfigLoadResult {
	return ConfigLoadResult{Value: v}
}

// fellBack returns a result carrying the default plus one warning.
func fellBack(v interface{}, warning string) ConfigLoadResult {
	return ConfigLoadResult{Value: v, Warnings: []string{warning}, FallbackApplied: true}
}

func invalidWarning(envKey, raw string, err error, defaultValue interface{}) string {
	return fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'",
		envKey, raw, err, defaultValue)
}

// LoadEnvString reads a string variable with no validation; unset or
// empty means the default. Use LoadEnvWithFallback when the value needs
// checking.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback reads a string variable and runs it through
// validator (nil skips validation). Unset or empty yields the default
// without a warning; a value that fails validation yields the default
// with one.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return loaded(defaultValue)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fellBack(defaultValue, invalidWarning(envKey, value, err, defaultValue))
		}
	}
	return loaded(value)
}

// LoadEnvDuration reads a Go duration string ("500ms", "5m", "1h30m").
// Parse failures and validation failures both fall back with a warning.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fellBack(defaultValue, invalidWarning(envKey, raw, err, defaultValue))
	}
	if validator != nil {
		if err := validator(d); err != nil {
			return fellBack(defaultValue, invalidWarning(envKey, raw, err, defaultValue))
		}
	}
	return loaded(d)
}

// LoadEnvInt reads an integer variable with the same fallback contract.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': invalid integer format, falling back to default '%d'",
			envKey, raw, defaultValue))
	}
	if validator != nil {
		if err := validator(n); err != nil {
			return fellBack(defaultValue, invalidWarning(envKey, raw, err, defaultValue))
		}
	}
	return loaded(n)
}

// LoadEnvFloat reads a float64 variable. Used for fractional rates such
// as token-bucket refill (tokens per second) and jitter fractions.
func LoadEnvFloat(envKey string, defaultValue float64, validator func(float64) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': invalid number format, falling back to default '%g'",
			envKey, raw, defaultValue))
	}
	if validator != nil {
		if err := validator(f); err != nil {
			return fellBack(defaultValue, invalidWarning(envKey, raw, err, defaultValue))
		}
	}
	return loaded(f)
}

// LoadEnvBool reads a boolean variable. Accepts the strconv.ParseBool
// forms ("1"/"0", "t"/"f", "true"/"false" in any common casing).
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': invalid boolean format, expected 'true' or 'false', falling back to default '%t'",
			envKey, raw, defaultValue))
	}
	return loaded(b)
}
