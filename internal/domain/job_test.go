package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewTrailGenerationJob(t *testing.T) {
	t.Parallel()
	trailID := uuid.New()
	studentID := uuid.New()

	job, err := NewTrailGenerationJob(trailID, studentID, JobTypeFullGeneration, 0, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if job.Status != JobStatusQueued {
		t.Errorf("Expected status %s, got %s", JobStatusQueued, job.Status)
	}
	if job.AttemptCount != 0 {
		t.Errorf("Expected 0 attempts, got %d", job.AttemptCount)
	}
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected max attempts %d, got %d", DefaultMaxAttempts, job.MaxAttempts)
	}
	if job.QueuedAt.IsZero() {
		t.Error("Expected QueuedAt to be set")
	}

	_, err = NewTrailGenerationJob(uuid.Nil, studentID, JobTypeFullGeneration, 0, nil)
	if err != ErrJobTrailIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrJobTrailIDEmpty, err)
	}

	_, err = NewTrailGenerationJob(trailID, studentID, "bogus", 0, nil)
	if err != ErrJobTypeInvalid {
		t.Errorf("Expected error %v, got %v", ErrJobTypeInvalid, err)
	}
}

func TestJobIsTerminal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   JobStatus
		attempts int
		want     bool
	}{
		{"queued", JobStatusQueued, 0, false},
		{"processing", JobStatusProcessing, 1, false},
		{"completed", JobStatusCompleted, 1, true},
		{"cancelled", JobStatusCancelled, 0, true},
		{"failed with retries left", JobStatusFailed, 2, false},
		{"failed exhausted", JobStatusFailed, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := TrailGenerationJob{
				ID:           uuid.New(),
				TrailID:      uuid.New(),
				StudentID:    uuid.New(),
				Status:       tt.status,
				JobType:      JobTypeFullGeneration,
				AttemptCount: tt.attempts,
				MaxAttempts:  5,
			}

			if got := job.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobIsActive(t *testing.T) {
	t.Parallel()
	active := map[JobStatus]bool{
		JobStatusQueued:     true,
		JobStatusProcessing: true,
		JobStatusCompleted:  false,
		JobStatusFailed:     false,
		JobStatusCancelled:  false,
	}

	for status, want := range active {
		job := TrailGenerationJob{Status: status}
		if got := job.IsActive(); got != want {
			t.Errorf("IsActive() for %s = %v, want %v", status, got, want)
		}
	}
}
