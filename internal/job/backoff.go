package job

import "time"

// Backoff policy defaults. Delays grow exponentially with the attempt count
// so a persistently failing provider is probed less and less often.
const (
	// DefaultInitialBackoff is the delay before the first retry.
	DefaultInitialBackoff = 30 * time.Second

	// DefaultMaxBackoff caps the delay between retries.
	DefaultMaxBackoff = 15 * time.Minute
)

// Backoff returns the delay before the next retry of a job that has consumed
// the given number of attempts: initial * 2^(attempt-1), capped at max.
// Attempts below 1 are treated as 1.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}

	if delay > max {
		return max
	}
	return delay
}

// NextRetryAt computes the eligibility time for the next retry using the
// default backoff policy.
func NextRetryAt(attempt int, now time.Time) time.Time {
	return now.UTC().Add(Backoff(attempt, DefaultInitialBackoff, DefaultMaxBackoff))
}
