// Package common holds the error taxonomy shared by the stores, services and
// HTTP handlers. Callers match with errors.Is / errors.As.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned before any store access when no user is
	// attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStore wraps every failure reported by the database.
	ErrStore = errors.New("store error")
)

// ValidationError reports rejected input. It is raised before any store or
// network call.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Invalid is shorthand for a single-message ValidationError.
func Invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

// GenerationError is returned when the content generator fails or replies
// with something that cannot be parsed into flashcards.
type GenerationError struct {
	Reason  string
	Wrapped error
}

func (e *GenerationError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Wrapped
}

// StoreErr tags err as a store failure while keeping it inspectable.
func StoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
