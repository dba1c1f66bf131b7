package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a trail generation job.
type JobStatus string

// Possible job status values
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// JobType identifies what kind of generation work a job performs.
type JobType string

// Possible job type values
const (
	JobTypeFullGeneration JobType = "full_generation"
	JobTypeGapFill        JobType = "gap_fill"
	JobTypeRefresh        JobType = "refresh"
)

// DefaultMaxAttempts is the retry budget a job is created with.
const DefaultMaxAttempts = 5

// Common validation errors for TrailGenerationJob
var (
	ErrJobIDEmpty          = fmt.Errorf("%w: job ID cannot be empty", ErrValidation)
	ErrJobTrailIDEmpty     = fmt.Errorf("%w: job trail ID cannot be empty", ErrValidation)
	ErrJobStudentIDEmpty   = fmt.Errorf("%w: job student ID cannot be empty", ErrValidation)
	ErrJobStatusInvalid    = fmt.Errorf("%w: invalid job status", ErrValidation)
	ErrJobTypeInvalid      = fmt.Errorf("%w: invalid job type", ErrValidation)
	ErrJobMaxAttemptsZero  = fmt.Errorf("%w: job max attempts must be positive", ErrValidation)
	ErrJobAttemptsExceeded = fmt.Errorf("%w: job attempt count cannot exceed max attempts", ErrValidation)
)

// TrailGenerationJob is the durable record of one asynchronous generation
// request for a trail. The struct is plain data; all state transitions live
// in the job package as pure functions so the lifecycle is unit-testable
// without a database.
type TrailGenerationJob struct {
	ID               uuid.UUID       `json:"id"`
	TrailID          uuid.UUID       `json:"trail_id"`
	StudentID        uuid.UUID       `json:"student_id"`
	Status           JobStatus       `json:"status"`
	JobType          JobType         `json:"job_type"`
	Priority         int             `json:"priority"`
	AttemptCount     int             `json:"attempt_count"`
	MaxAttempts      int             `json:"max_attempts"`
	Gaps             json.RawMessage `json:"gaps,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	ErrorDetails     json.RawMessage `json:"error_details,omitempty"`
	WorkerID         string          `json:"worker_id,omitempty"`
	TokensUsed       *int            `json:"tokens_used,omitempty"`
	ProcessingTimeMs *int64          `json:"processing_time_ms,omitempty"`
	QueuedAt         time.Time       `json:"queued_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
	NextRetryAt      *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewTrailGenerationJob creates a queued job for the given trail. Gaps may be
// nil except for gap_fill jobs, where it carries the module positions to fill.
func NewTrailGenerationJob(trailID, studentID uuid.UUID, jobType JobType, priority int, gaps json.RawMessage) (*TrailGenerationJob, error) {
	now := time.Now().UTC()
	job := &TrailGenerationJob{
		ID:           uuid.New(),
		TrailID:      trailID,
		StudentID:    studentID,
		Status:       JobStatusQueued,
		JobType:      jobType,
		Priority:     priority,
		AttemptCount: 0,
		MaxAttempts:  DefaultMaxAttempts,
		Gaps:         gaps,
		QueuedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the TrailGenerationJob has valid data.
func (j *TrailGenerationJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrJobIDEmpty
	}

	if j.TrailID == uuid.Nil {
		return ErrJobTrailIDEmpty
	}

	if j.StudentID == uuid.Nil {
		return ErrJobStudentIDEmpty
	}

	if !isValidJobStatus(j.Status) {
		return ErrJobStatusInvalid
	}

	if !isValidJobType(j.JobType) {
		return ErrJobTypeInvalid
	}

	if j.MaxAttempts <= 0 {
		return ErrJobMaxAttemptsZero
	}

	if j.AttemptCount > j.MaxAttempts {
		return ErrJobAttemptsExceeded
	}

	return nil
}

// IsTerminal reports whether the job can never transition again. A failed job
// is terminal only once its retry budget is exhausted.
func (j *TrailGenerationJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled:
		return true
	case JobStatusFailed:
		return j.AttemptCount >= j.MaxAttempts
	default:
		return false
	}
}

// IsActive reports whether the job occupies the one-active-job-per-trail slot.
func (j *TrailGenerationJob) IsActive() bool {
	return j.Status == JobStatusQueued || j.Status == JobStatusProcessing
}

func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

func isValidJobType(jobType JobType) bool {
	switch jobType {
	case JobTypeFullGeneration, JobTypeGapFill, JobTypeRefresh:
		return true
	default:
		return false
	}
}
