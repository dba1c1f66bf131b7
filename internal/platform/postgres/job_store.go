package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

const jobColumns = `id, trail_id, student_id, status, job_type, priority,
	attempt_count, max_attempts, gaps, last_error, error_details, worker_id,
	tokens_used, processing_time_ms, queued_at, started_at, completed_at,
	failed_at, next_retry_at, created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// WithTx returns a new JobStore instance that uses the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// Create saves a new job to the database. The idx_jobs_one_active_per_trail
// partial unique index rejects a second queued or processing job for the same
// trail; that violation is surfaced as ErrActiveJobExists.
func (s *PostgresJobStore) Create(ctx context.Context, j *domain.TrailGenerationJob) error {
	log := logger.FromContext(ctx)

	if err := j.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO trail_generation_jobs (id, trail_id, student_id, status,
			job_type, priority, attempt_count, max_attempts, gaps, last_error,
			error_details, worker_id, tokens_used, processing_time_ms, queued_at,
			started_at, completed_at, failed_at, next_retry_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21)
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.TrailID,
		j.StudentID,
		j.Status,
		j.JobType,
		j.Priority,
		j.AttemptCount,
		j.MaxAttempts,
		nullRawMessage(j.Gaps),
		nullString(j.LastError),
		nullRawMessage(j.ErrorDetails),
		nullString(j.WorkerID),
		j.TokensUsed,
		j.ProcessingTimeMs,
		j.QueuedAt,
		j.StartedAt,
		j.CompletedAt,
		j.FailedAt,
		j.NextRetryAt,
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrDuplicate) {
			log.Warn("active job already exists for trail", "trail_id", j.TrailID)
			return store.ErrActiveJobExists
		}
		log.Error("failed to create job", "job_id", j.ID, "trail_id", j.TrailID, "error", err)
		return store.NewStoreError("generation job", "create", "insert failed", mapped)
	}

	return nil
}

// GetByID retrieves a job by its unique ID.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrailGenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM trail_generation_jobs WHERE id = $1`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return j, nil
}

// GetActiveByTrail retrieves the queued or processing job for a trail.
func (s *PostgresJobStore) GetActiveByTrail(ctx context.Context, trailID uuid.UUID) (*domain.TrailGenerationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM trail_generation_jobs
		WHERE trail_id = $1 AND status IN ($2, $3)
	`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, trailID, domain.JobStatusQueued, domain.JobStatusProcessing))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return j, nil
}

// ListByTrail retrieves all jobs for a trail, newest first.
func (s *PostgresJobStore) ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.TrailGenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM trail_generation_jobs WHERE trail_id = $1 ORDER BY created_at DESC`
	return s.queryJobs(ctx, query, trailID)
}

// Update saves the job's current state.
func (s *PostgresJobStore) Update(ctx context.Context, j *domain.TrailGenerationJob) error {
	log := logger.FromContext(ctx)

	if err := j.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE trail_generation_jobs
		SET status = $1, attempt_count = $2, last_error = $3, error_details = $4,
			worker_id = $5, tokens_used = $6, processing_time_ms = $7,
			started_at = $8, completed_at = $9, failed_at = $10,
			next_retry_at = $11, updated_at = $12
		WHERE id = $13
	`

	result, err := s.db.ExecContext(ctx, query,
		j.Status,
		j.AttemptCount,
		nullString(j.LastError),
		nullRawMessage(j.ErrorDetails),
		nullString(j.WorkerID),
		j.TokensUsed,
		j.ProcessingTimeMs,
		j.StartedAt,
		j.CompletedAt,
		j.FailedAt,
		j.NextRetryAt,
		j.UpdatedAt,
		j.ID,
	)
	if err != nil {
		log.Error("failed to update job", "job_id", j.ID, "error", err)
		return store.NewStoreError("generation job", "update", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// CancelActiveByTrail marks every non-terminal job for the trail cancelled:
// queued, processing, and failed jobs that still have retry budget. The last
// group mirrors TrailGenerationJob.IsTerminal, so a failed-but-retryable job
// reads as cancelled rather than as a live failure once its trail is done.
func (s *PostgresJobStore) CancelActiveByTrail(ctx context.Context, trailID uuid.UUID) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE trail_generation_jobs
		SET status = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE trail_id = $2
			AND (status IN ($3, $4) OR (status = $5 AND attempt_count < max_attempts))
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCancelled,
		trailID,
		domain.JobStatusQueued,
		domain.JobStatusProcessing,
		domain.JobStatusFailed,
	)
	if err != nil {
		log.Error("failed to cancel active jobs", "trail_id", trailID, "error", err)
		return 0, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DueForRetry retrieves queued jobs whose retry time has arrived, highest
// priority first, then oldest queued first.
func (s *PostgresJobStore) DueForRetry(ctx context.Context, now time.Time) ([]domain.TrailGenerationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM trail_generation_jobs
		WHERE status = $1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		ORDER BY priority DESC, queued_at ASC
	`
	return s.queryJobs(ctx, query, domain.JobStatusQueued, now)
}

// StaleProcessing retrieves processing jobs whose started_at is older than the
// given duration. These are jobs whose worker died mid-flight.
func (s *PostgresJobStore) StaleProcessing(ctx context.Context, olderThan time.Duration) ([]domain.TrailGenerationJob, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		SELECT ` + jobColumns + `
		FROM trail_generation_jobs
		WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2
		ORDER BY started_at ASC
	`
	return s.queryJobs(ctx, query, domain.JobStatusProcessing, cutoff)
}

// ListQueued retrieves queued jobs with no pending retry schedule.
func (s *PostgresJobStore) ListQueued(ctx context.Context) ([]domain.TrailGenerationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM trail_generation_jobs
		WHERE status = $1 AND next_retry_at IS NULL
		ORDER BY priority DESC, queued_at ASC
	`
	return s.queryJobs(ctx, query, domain.JobStatusQueued)
}

func (s *PostgresJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]domain.TrailGenerationJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.TrailGenerationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, MapError(err)
		}
		jobs = append(jobs, *j)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*domain.TrailGenerationJob, error) {
	var j domain.TrailGenerationJob
	var gaps, errorDetails []byte
	var lastError, workerID sql.NullString

	err := row.Scan(
		&j.ID,
		&j.TrailID,
		&j.StudentID,
		&j.Status,
		&j.JobType,
		&j.Priority,
		&j.AttemptCount,
		&j.MaxAttempts,
		&gaps,
		&lastError,
		&errorDetails,
		&workerID,
		&j.TokensUsed,
		&j.ProcessingTimeMs,
		&j.QueuedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.FailedAt,
		&j.NextRetryAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(gaps) > 0 {
		j.Gaps = gaps
	}
	if len(errorDetails) > 0 {
		j.ErrorDetails = errorDetails
	}
	j.LastError = lastError.String
	j.WorkerID = workerID.String
	return &j, nil
}
