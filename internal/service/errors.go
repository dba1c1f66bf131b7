// Package service provides application-level services for trail generation,
// lifecycle, and progress.
package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors callers check with errors.Is().
// The API layer maps these to HTTP status codes.
var (
	// ErrActiveTrailExists indicates the student already has a ready trail for
	// the language; the client must refresh instead of generating a new one.
	// API layer should map this to HTTP 409 Conflict.
	ErrActiveTrailExists = errors.New("an active trail already exists for this language")

	// ErrGenerationInProgress indicates a generation job is already running
	// for the trail. API layer should map this to HTTP 409 Conflict.
	ErrGenerationInProgress = errors.New("trail generation already in progress")

	// ErrTrailArchived indicates the requested operation is invalid on an
	// archived trail. API layer should map this to HTTP 409 Conflict.
	ErrTrailArchived = errors.New("trail is archived")

	// ErrNotOwned indicates a trail is owned by a different student than the
	// one making the request. API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("trail is owned by another student")
)

// TrailServiceError represents errors that occur during trail service
// operations, carrying which operation failed for diagnostics.
type TrailServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TrailServiceError.
func (e *TrailServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trail service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("trail service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TrailServiceError) Unwrap() error {
	return e.Err
}

// NewTrailServiceError creates a new TrailServiceError.
func NewTrailServiceError(operation, message string, err error) *TrailServiceError {
	return &TrailServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
