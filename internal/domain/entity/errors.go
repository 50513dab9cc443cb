package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that no delivery record exists for a key
	ErrNotFound = errors.New("delivery record not found")

	// ErrInvalidTransition indicates that a requested state change is not
	// permitted by the delivery state machine (including any attempt to
	// leave a terminal state)
	ErrInvalidTransition = errors.New("invalid delivery state transition")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a request field that failed validation before any
// delivery state was created. Validation failures are never retried.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
