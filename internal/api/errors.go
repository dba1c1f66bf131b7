package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/service"
	"github.com/lingotrail/trail-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrTrailNotFound),
		errors.Is(err, store.ErrModuleNotFound),
		errors.Is(err, store.ErrLessonNotFound),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrProgressNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrActiveTrailExists),
		errors.Is(err, service.ErrGenerationInProgress),
		errors.Is(err, service.ErrTrailArchived):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrLevelNotFound),
		errors.Is(err, store.ErrCompetencyNotFound),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the error.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this trail"

	case errors.Is(err, store.ErrTrailNotFound):
		return "Trail not found"

	case errors.Is(err, store.ErrModuleNotFound):
		return "Module not found"

	case errors.Is(err, store.ErrLessonNotFound):
		return "Lesson not found"

	case errors.Is(err, store.ErrJobNotFound):
		return "Generation job not found"

	case errors.Is(err, store.ErrProgressNotFound):
		return "Progress not found"

	case errors.Is(err, service.ErrActiveTrailExists):
		return "An active trail already exists for this language; refresh it instead"

	case errors.Is(err, service.ErrGenerationInProgress):
		return "Trail generation is already in progress"

	case errors.Is(err, service.ErrTrailArchived):
		return "Trail is archived"

	case errors.Is(err, store.ErrLevelNotFound):
		return "Unknown curriculum level"

	case errors.Is(err, store.ErrCompetencyNotFound):
		return "Unknown competency"

	case errors.Is(err, domain.ErrLessonScoreOutOfRange):
		return "Score must be between 0 and 100"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError converts a validator error into a user-friendly
// message without echoing the submitted values back.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example: "Key: 'GenerateTrailRequest.Language' Error:Field
		// validation for 'Language' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gte", "lte":
		return "out of range"
	default:
		return "validation failed"
	}
}
