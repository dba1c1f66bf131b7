package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lingotrail/trail-api/internal/domain"
)

// Transition errors
var (
	// ErrNotQueued is returned when claiming a job that is not queued.
	ErrNotQueued = errors.New("job is not queued")

	// ErrNotProcessing is returned when completing or failing a job that no
	// worker owns.
	ErrNotProcessing = errors.New("job is not processing")

	// ErrTerminal is returned when transitioning a job that has already
	// reached a terminal state.
	ErrTerminal = errors.New("job is in a terminal state")

	// ErrRetryBudgetExhausted is returned by ScheduleRetry once the attempt
	// budget is spent. The job stays failed; no amount of further scheduling
	// revives it.
	ErrRetryBudgetExhausted = errors.New("job retry budget exhausted")

	// ErrWorkerIDEmpty is returned when claiming a job without a worker ID.
	ErrWorkerIDEmpty = errors.New("worker ID cannot be empty")
)

// Claim transitions a queued job to processing under the given worker. The
// attempt count is incremented here, at claim time, so it always reflects
// attempts actually started; CanRetry compares against attempts already
// consumed. Recording the worker and start time is what makes stale-job
// detection possible.
func Claim(j domain.TrailGenerationJob, workerID string, now time.Time) (domain.TrailGenerationJob, error) {
	if workerID == "" {
		return j, ErrWorkerIDEmpty
	}

	if j.Status != domain.JobStatusQueued {
		return j, fmt.Errorf("%w: status is %s", ErrNotQueued, j.Status)
	}

	if j.AttemptCount >= j.MaxAttempts {
		return j, ErrRetryBudgetExhausted
	}

	started := now.UTC()
	j.Status = domain.JobStatusProcessing
	j.WorkerID = workerID
	j.AttemptCount++
	j.StartedAt = &started
	j.NextRetryAt = nil
	j.UpdatedAt = started
	return j, nil
}

// Complete transitions a processing job to its terminal success state,
// recording the tokens used and wall-clock processing time.
func Complete(j domain.TrailGenerationJob, tokensUsed int, processingTimeMs int64, now time.Time) (domain.TrailGenerationJob, error) {
	if j.Status != domain.JobStatusProcessing {
		return j, fmt.Errorf("%w: status is %s", ErrNotProcessing, j.Status)
	}

	completed := now.UTC()
	j.Status = domain.JobStatusCompleted
	j.TokensUsed = &tokensUsed
	j.ProcessingTimeMs = &processingTimeMs
	j.CompletedAt = &completed
	j.UpdatedAt = completed
	return j, nil
}

// Fail transitions a processing job to failed, capturing the error string and
// structured diagnostics. Details are normalized to valid JSON so failed jobs
// remain queryable: structured payloads pass through, anything else is stored
// as a JSON string.
func Fail(j domain.TrailGenerationJob, cause string, details any, now time.Time) (domain.TrailGenerationJob, error) {
	if j.Status != domain.JobStatusProcessing {
		return j, fmt.Errorf("%w: status is %s", ErrNotProcessing, j.Status)
	}

	failed := now.UTC()
	j.Status = domain.JobStatusFailed
	j.LastError = cause
	j.ErrorDetails = NormalizeErrorDetails(details)
	j.FailedAt = &failed
	j.UpdatedAt = failed
	return j, nil
}

// Cancel transitions any non-terminal job to cancelled. Cancellation is a
// database-side marker; a message already delivered to a worker is not
// recalled, so workers re-check job status around expensive steps.
func Cancel(j domain.TrailGenerationJob, now time.Time) (domain.TrailGenerationJob, error) {
	if j.IsTerminal() {
		return j, fmt.Errorf("%w: status is %s", ErrTerminal, j.Status)
	}

	cancelled := now.UTC()
	j.Status = domain.JobStatusCancelled
	j.UpdatedAt = cancelled
	return j, nil
}

// CanRetry reports whether the job may be scheduled for another attempt:
// only while the attempt budget has room and the job is failed or queued.
func CanRetry(j domain.TrailGenerationJob) bool {
	if j.AttemptCount >= j.MaxAttempts {
		return false
	}
	return j.Status == domain.JobStatusFailed || j.Status == domain.JobStatusQueued
}

// ScheduleRetry resets a retryable job to queued with a future eligibility
// time. The retry scheduler republishes the job once nextRetryAt has passed.
func ScheduleRetry(j domain.TrailGenerationJob, nextRetryAt time.Time, now time.Time) (domain.TrailGenerationJob, error) {
	if !CanRetry(j) {
		if j.AttemptCount >= j.MaxAttempts {
			return j, ErrRetryBudgetExhausted
		}
		return j, fmt.Errorf("%w: status is %s", ErrTerminal, j.Status)
	}

	retryAt := nextRetryAt.UTC()
	updated := now.UTC()
	j.Status = domain.JobStatusQueued
	j.WorkerID = ""
	j.StartedAt = nil
	j.NextRetryAt = &retryAt
	j.QueuedAt = updated
	j.UpdatedAt = updated
	return j, nil
}

// NormalizeErrorDetails converts arbitrary diagnostics into a valid JSON
// document. Raw JSON (json.RawMessage or []byte holding a well-formed
// document) passes through untouched; strings and anything else are encoded,
// so a plain error message becomes a JSON string rather than corrupt data.
func NormalizeErrorDetails(details any) json.RawMessage {
	if details == nil {
		return nil
	}

	switch v := details.(type) {
	case json.RawMessage:
		if json.Valid(v) {
			return v
		}
		return mustEncodeJSON(string(v))
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v)
		}
		return mustEncodeJSON(string(v))
	case string:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v)
		}
		return mustEncodeJSON(v)
	default:
		return mustEncodeJSON(v)
	}
}

// mustEncodeJSON encodes a value, falling back to its string form when the
// value itself cannot be marshalled. It never returns invalid JSON.
func mustEncodeJSON(v any) json.RawMessage {
	encoded, err := json.Marshal(v)
	if err != nil {
		encoded, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return encoded
}
