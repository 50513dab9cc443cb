// Package pagination provides offset-based pagination for listing
// endpoints: query-parameter parsing, limit clamping, offset/page math,
// and a generic response wrapper.
package pagination

import (
	"os"
	"strconv"
)

// Config bounds what callers may request per page.
type Config struct {
	DefaultPage  int // page used when the query omits one (1-based)
	DefaultLimit int // page size used when the query omits one
	MaxLimit     int // hard cap on the page size a caller may request
}

// DefaultConfig returns the bounds used when nothing is configured:
// page 1, 20 items per page, capped at 100.
func DefaultConfig() Config {
	return Config{
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}

// LoadFromEnv reads PAGINATION_DEFAULT_PAGE, PAGINATION_DEFAULT_LIMIT and
// PAGINATION_MAX_LIMIT, falling back per-field to DefaultConfig values when
// a variable is unset or not an integer.
func LoadFromEnv() Config {
	def := DefaultConfig()
	return Config{
		DefaultPage:  envInt("PAGINATION_DEFAULT_PAGE", def.DefaultPage),
		DefaultLimit: envInt("PAGINATION_DEFAULT_LIMIT", def.DefaultLimit),
		MaxLimit:     envInt("PAGINATION_MAX_LIMIT", def.MaxLimit),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
