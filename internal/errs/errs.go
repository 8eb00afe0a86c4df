// Package errs holds the error taxonomy shared by the core, the services and the adapters.
// This package has no internal dependencies to avoid import cycles.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed inputs that indicate a programming error.
	ErrValidation = errors.New("validation failed")

	// ErrStatusConflict is returned when a status compare-and-swap observes a
	// status other than the one the caller validated against.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// FatalLoadError reports that the entity an operation targets cannot be loaded.
type FatalLoadError struct {
	Kind string
	ID   string
	Err  error
}

func (e *FatalLoadError) Error() string {
	return fmt.Sprintf("%s %s could not be loaded: %v", e.Kind, e.ID, e.Err)
}

func (e *FatalLoadError) Unwrap() error { return e.Err }

// NotFound builds a FatalLoadError wrapping ErrNotFound.
func NotFound(kind, id string) error {
	return &FatalLoadError{Kind: kind, ID: id, Err: ErrNotFound}
}

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
