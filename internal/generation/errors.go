package generation

import "errors"

// Common errors returned by generation providers. Workers record the matched
// sentinel's message as the job's last error, so the taxonomy here is the
// failure vocabulary that shows up in job inspection.
var (
	// ErrProviderFailure is returned when the provider fails for any general reason
	ErrProviderFailure = errors.New("content generation provider failure")

	// ErrProviderTimeout is returned when a generation call exceeds its deadline
	ErrProviderTimeout = errors.New("content generation timed out")

	// ErrMalformedPayload is returned when the provider response cannot be parsed
	ErrMalformedPayload = errors.New("malformed payload from content generation provider")

	// ErrQuotaExhausted is returned when the provider rejects the call for rate or quota limits
	ErrQuotaExhausted = errors.New("content generation quota exhausted")
)
