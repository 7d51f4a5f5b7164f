package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for operations on an unknown webhook id.
	ErrNotFound = errors.New("webhook not found")

	// ErrDuplicate is returned when inserting a webhook whose id already
	// exists. Practically unreachable with generated ids, but the store
	// contract defines it.
	ErrDuplicate = errors.New("webhook already exists")

	// ErrConflict is returned when an optimistic update lost the race and
	// bounded retries were exhausted.
	ErrConflict = errors.New("concurrent modification conflict")
)

// ValidationError describes malformed caller input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
