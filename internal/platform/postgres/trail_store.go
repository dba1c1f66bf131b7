package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// trailColumns is the column list every trail query selects, in scan order.
const trailColumns = `id, student_id, language, level, status, content_hash,
	curriculum_version, previous_trail_id, refresh_reason, archived_at,
	created_at, updated_at`

// PostgresTrailStore implements the store.TrailStore interface using PostgreSQL.
type PostgresTrailStore struct {
	db store.DBTX
}

// NewPostgresTrailStore creates a new PostgresTrailStore.
func NewPostgresTrailStore(db store.DBTX) *PostgresTrailStore {
	return &PostgresTrailStore{db: db}
}

// WithTx returns a new TrailStore instance that uses the provided transaction.
func (s *PostgresTrailStore) WithTx(tx *sql.Tx) store.TrailStore {
	return &PostgresTrailStore{db: tx}
}

// Create saves a new trail to the database.
func (s *PostgresTrailStore) Create(ctx context.Context, trail *domain.Trail) error {
	log := logger.FromContext(ctx)

	if err := trail.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO trails (id, student_id, language, level, status, content_hash,
			curriculum_version, previous_trail_id, refresh_reason, archived_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		trail.ID,
		trail.StudentID,
		trail.Language,
		trail.Level,
		trail.Status,
		nullString(trail.ContentHash),
		nullString(trail.CurriculumVersion),
		trail.PreviousTrailID,
		nullString(trail.RefreshReason),
		trail.ArchivedAt,
		trail.CreatedAt,
		trail.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create trail",
			"trail_id", trail.ID,
			"student_id", trail.StudentID,
			"error", err)
		return store.NewStoreError("trail", "create", "insert failed", MapError(err))
	}

	return nil
}

// GetByID retrieves a trail by its unique ID.
func (s *PostgresTrailStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trail, error) {
	query := `SELECT ` + trailColumns + ` FROM trails WHERE id = $1`

	trail, err := scanTrail(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTrailNotFound
		}
		return nil, MapError(err)
	}

	return trail, nil
}

// GetActive retrieves the single non-archived trail for a (student, language)
// pair. A partial unique index guarantees at most one such row exists.
func (s *PostgresTrailStore) GetActive(ctx context.Context, studentID uuid.UUID, language string) (*domain.Trail, error) {
	query := `
		SELECT ` + trailColumns + `
		FROM trails
		WHERE student_id = $1 AND language = $2 AND status <> $3
	`

	trail, err := scanTrail(s.db.QueryRowContext(ctx, query, studentID, language, domain.TrailStatusArchived))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTrailNotFound
		}
		return nil, MapError(err)
	}

	return trail, nil
}

// ListByStudent retrieves all trails for a student, newest first, optionally
// filtered by language.
func (s *PostgresTrailStore) ListByStudent(ctx context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error) {
	query := `SELECT ` + trailColumns + ` FROM trails WHERE student_id = $1`
	args := []any{studentID}

	if language != "" {
		query += ` AND language = $2`
		args = append(args, language)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var trails []*domain.Trail
	for rows.Next() {
		trail, err := scanTrail(rows)
		if err != nil {
			return nil, MapError(err)
		}
		trails = append(trails, trail)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return trails, nil
}

// Update saves changes to an existing trail.
func (s *PostgresTrailStore) Update(ctx context.Context, trail *domain.Trail) error {
	log := logger.FromContext(ctx)

	if err := trail.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE trails
		SET status = $1, content_hash = $2, curriculum_version = $3,
			previous_trail_id = $4, refresh_reason = $5, archived_at = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		trail.Status,
		nullString(trail.ContentHash),
		nullString(trail.CurriculumVersion),
		trail.PreviousTrailID,
		nullString(trail.RefreshReason),
		trail.ArchivedAt,
		trail.UpdatedAt,
		trail.ID,
	)
	if err != nil {
		log.Error("failed to update trail", "trail_id", trail.ID, "error", err)
		return store.NewStoreError("trail", "update", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTrailNotFound
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrail(row rowScanner) (*domain.Trail, error) {
	var trail domain.Trail
	var contentHash, curriculumVersion, refreshReason sql.NullString

	err := row.Scan(
		&trail.ID,
		&trail.StudentID,
		&trail.Language,
		&trail.Level,
		&trail.Status,
		&contentHash,
		&curriculumVersion,
		&trail.PreviousTrailID,
		&refreshReason,
		&trail.ArchivedAt,
		&trail.CreatedAt,
		&trail.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trail.ContentHash = contentHash.String
	trail.CurriculumVersion = curriculumVersion.String
	trail.RefreshReason = refreshReason.String
	return &trail, nil
}

// nullString converts an empty string to NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
