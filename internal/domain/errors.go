package domain

import "errors"

// ErrValidation is the base error every entity validation sentinel wraps.
// Callers that do not care which field failed can match on it with errors.Is;
// the API layer maps it to a 400 response.
var ErrValidation = errors.New("validation failed")
