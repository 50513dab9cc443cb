package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned when the idempotency key in the URL path is invalid.
var ErrInvalidKey = errors.New("invalid idempotency key")

// maxKeyLength matches the idempotency key cap enforced at submission.
const maxKeyLength = 255

// ExtractKey extracts an idempotency key from a URL path.
// It removes the specified prefix and validates the remaining segment.
//
// Parameters:
//   - path: The full URL path (e.g., "/deliveries/order-42")
//   - prefix: The prefix to remove (e.g., "/deliveries/")
//
// Returns:
//   - string: The extracted key
//   - error: ErrInvalidKey if the key is empty, nested, or too long
//
// Example:
//
//	key, err := ExtractKey("/deliveries/order-42", "/deliveries/")
//	// Returns: "order-42", nil
func ExtractKey(path, prefix string) (string, error) {
	key := strings.TrimPrefix(path, prefix)
	if key == "" || key == path {
		return "", ErrInvalidKey
	}
	if strings.Contains(key, "/") {
		return "", ErrInvalidKey
	}
	if len(key) > maxKeyLength {
		return "", ErrInvalidKey
	}
	return key, nil
}
