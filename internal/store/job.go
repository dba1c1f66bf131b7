package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
)

// JobStore defines the interface for trail generation job persistence.
type JobStore interface {
	// Create saves a new job to the store.
	// Returns ErrActiveJobExists if a queued or processing job already
	// exists for the trail (enforced by a partial unique index).
	Create(ctx context.Context, j *domain.TrailGenerationJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TrailGenerationJob, error)

	// GetActiveByTrail retrieves the queued or processing job for a trail.
	// Returns ErrJobNotFound if no active job exists.
	GetActiveByTrail(ctx context.Context, trailID uuid.UUID) (*domain.TrailGenerationJob, error)

	// ListByTrail retrieves all jobs for a trail, newest first.
	ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.TrailGenerationJob, error)

	// Update saves the job's current state.
	// Returns ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, j *domain.TrailGenerationJob) error

	// CancelActiveByTrail marks every non-terminal job for the trail
	// cancelled (queued, processing, or failed with retry budget left) and
	// returns how many were affected. Best-effort: a message already
	// delivered to a worker is not recalled.
	CancelActiveByTrail(ctx context.Context, trailID uuid.UUID) (int64, error)

	// DueForRetry retrieves queued jobs whose next_retry_at is at or before
	// now, ordered by priority then queueing time.
	DueForRetry(ctx context.Context, now time.Time) ([]domain.TrailGenerationJob, error)

	// StaleProcessing retrieves processing jobs whose started_at is older
	// than the given duration.
	StaleProcessing(ctx context.Context, olderThan time.Duration) ([]domain.TrailGenerationJob, error)

	// ListQueued retrieves queued jobs with no pending retry schedule.
	// Used by worker crash recovery to republish lost messages.
	ListQueued(ctx context.Context) ([]domain.TrailGenerationJob, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
