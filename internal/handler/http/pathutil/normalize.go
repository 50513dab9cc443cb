package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Delivery routes addressed by caller-supplied idempotency keys.
	// Keys are free-form strings, so any single path segment counts as a key.
	{Pattern: regexp.MustCompile(`^/deliveries/[^/]+$`), Template: "/deliveries/:key"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with idempotency keys (e.g., /deliveries/order-42) to template format
// (e.g., /deliveries/:key). Static paths remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/deliveries/order-42")   // "/deliveries/:key"
//	NormalizePath("/deliveries/a1b2c3")     // "/deliveries/:key"
//	NormalizePath("/deliveries")            // "/deliveries" (unchanged)
//	NormalizePath("/notifications")         // "/notifications" (unchanged)
//	NormalizePath("/health")               // "/health" (unchanged)
//	NormalizePath("/metrics")               // "/metrics" (unchanged)
//	NormalizePath("/unknown/path/123")      // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/deliveries/order-42?verbose=1")  // "/deliveries/:key"
//	NormalizePath("/deliveries/order-42/")           // "/deliveries/:key"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /notifications, /health, /metrics
	// pass through unchanged
	return path
}
