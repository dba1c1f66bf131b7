package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// PostgresProgressStore implements the store.ProgressStore interface using
// PostgreSQL.
type PostgresProgressStore struct {
	db store.DBTX
}

// NewPostgresProgressStore creates a new PostgresProgressStore.
func NewPostgresProgressStore(db store.DBTX) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

// WithTx returns a new ProgressStore instance that uses the provided transaction.
func (s *PostgresProgressStore) WithTx(tx *sql.Tx) store.ProgressStore {
	return &PostgresProgressStore{db: tx}
}

// Upsert writes the rollup for a trail, replacing any previous row. The rollup
// is recomputed from scratch each time, so overwriting is always safe.
func (s *PostgresProgressStore) Upsert(ctx context.Context, progress *domain.TrailProgress) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO trail_progress (trail_id, total_lessons, lessons_completed,
			progress_percentage, average_score, time_spent_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (trail_id) DO UPDATE
		SET total_lessons = EXCLUDED.total_lessons,
			lessons_completed = EXCLUDED.lessons_completed,
			progress_percentage = EXCLUDED.progress_percentage,
			average_score = EXCLUDED.average_score,
			time_spent_minutes = EXCLUDED.time_spent_minutes,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		progress.TrailID,
		progress.TotalLessons,
		progress.LessonsCompleted,
		progress.ProgressPercentage,
		progress.AverageScore,
		progress.TimeSpentMinutes,
		progress.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert trail progress", "trail_id", progress.TrailID, "error", err)
		return MapError(err)
	}

	return nil
}

// GetByTrail retrieves the rollup for a trail.
func (s *PostgresProgressStore) GetByTrail(ctx context.Context, trailID uuid.UUID) (*domain.TrailProgress, error) {
	query := `
		SELECT trail_id, total_lessons, lessons_completed, progress_percentage,
			average_score, time_spent_minutes, updated_at
		FROM trail_progress
		WHERE trail_id = $1
	`

	var progress domain.TrailProgress
	err := s.db.QueryRowContext(ctx, query, trailID).Scan(
		&progress.TrailID,
		&progress.TotalLessons,
		&progress.LessonsCompleted,
		&progress.ProgressPercentage,
		&progress.AverageScore,
		&progress.TimeSpentMinutes,
		&progress.UpdatedAt,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrProgressNotFound
		}
		return nil, MapError(err)
	}

	return &progress, nil
}
