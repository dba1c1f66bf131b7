package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrTrailNotFound, ErrJobNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a content block with the same hash).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction cannot be
	// started or committed. Errors from the function running inside the
	// transaction are returned as-is, not wrapped with this.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTrailNotFound indicates that the requested trail does not exist in the store.
	ErrTrailNotFound = fmt.Errorf("%w: trail", ErrNotFound)

	// ErrModuleNotFound indicates that the requested trail module does not exist in the store.
	ErrModuleNotFound = fmt.Errorf("%w: trail module", ErrNotFound)

	// ErrLessonNotFound indicates that the requested lesson does not exist in the store.
	ErrLessonNotFound = fmt.Errorf("%w: lesson", ErrNotFound)

	// ErrJobNotFound indicates that the requested generation job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: generation job", ErrNotFound)

	// ErrContentBlockNotFound indicates that the requested content block does not exist in the store.
	ErrContentBlockNotFound = fmt.Errorf("%w: content block", ErrNotFound)

	// ErrBlueprintNotFound indicates that the requested blueprint does not exist in the store.
	ErrBlueprintNotFound = fmt.Errorf("%w: blueprint", ErrNotFound)

	// ErrProgressNotFound indicates that the requested trail progress rollup does not exist.
	ErrProgressNotFound = fmt.Errorf("%w: trail progress", ErrNotFound)

	// ErrLevelNotFound indicates that the requested curriculum level does not exist.
	ErrLevelNotFound = fmt.Errorf("%w: level", ErrNotFound)

	// ErrCompetencyNotFound indicates that the requested competency does not exist.
	ErrCompetencyNotFound = fmt.Errorf("%w: competency", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrContentHashExists indicates that a content block with the given hash
	// already exists. Callers performing find-or-create treat this as success
	// and attach to the existing row.
	ErrContentHashExists = fmt.Errorf("%w: content hash", ErrDuplicate)

	// ErrActiveJobExists indicates that a queued or processing job already
	// exists for the trail. At most one job may be active per trail.
	ErrActiveJobExists = fmt.Errorf("%w: active generation job", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "trail", "lesson")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
