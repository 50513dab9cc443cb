package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

func warnInvalid(kind, key, raw string, def slog.Attr, err error) {
	attrs := []any{
		slog.String("key", key),
		slog.String("value", raw),
		def,
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.Warn("invalid "+kind+" value for environment variable, using default", attrs...)
}

// GetEnvString returns the environment variable or defaultValue when unset.
// No validation, no warnings.
//
//	apiURL := GetEnvString("API_URL", "http://localhost:8080")
func GetEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses the environment variable as an integer. Unset, empty, or
// unparseable values fall back to defaultValue with a warning.
//
//	port := GetEnvInt("PORT", 8080)
func GetEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		warnInvalid("integer", key, raw, slog.Int("default", defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvBool parses the environment variable as a boolean. It accepts the
// strconv.ParseBool forms ("1", "t", "true", "0", "f", "false" and their
// case variants). Unset or invalid values fall back to defaultValue with a
// warning.
//
//	enabled := GetEnvBool("RATELIMIT_ENABLED", true)
func GetEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		warnInvalid("boolean", key, raw, slog.Bool("default", defaultValue), nil)
		return defaultValue
	}
	return value
}

// GetEnvDuration parses the environment variable with time.ParseDuration
// ("1m", "30s", "1h30m"). Unset or unparseable values fall back to
// defaultValue with a warning.
//
//	timeout := GetEnvDuration("TIMEOUT", 30*time.Second)
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		warnInvalid("duration", key, raw, slog.String("default", defaultValue.String()), err)
		return defaultValue
	}
	return value
}

// GetEnvFloat64 parses the environment variable as a float. Unset or
// unparseable values fall back to defaultValue with a warning.
//
//	rate := GetEnvFloat64("QUOTA_REQUESTS_PER_SEC", 5.0)
func GetEnvFloat64(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		warnInvalid("float", key, raw, slog.Float64("default", defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvStringList splits the environment variable on commas, trimming
// whitespace and dropping empty entries. An unset variable, or one that
// yields no entries, returns defaultValue.
//
//	proxies := GetEnvStringList("TRUSTED_PROXIES", []string{"10.0.0.0/8"})
func GetEnvStringList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
