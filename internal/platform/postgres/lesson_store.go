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

const lessonColumns = `id, module_id, type, position, placeholder, content,
	completed_at, score, time_spent_seconds, created_at, updated_at`

// PostgresLessonStore implements the store.LessonStore interface using PostgreSQL.
type PostgresLessonStore struct {
	db store.DBTX
}

// NewPostgresLessonStore creates a new PostgresLessonStore.
func NewPostgresLessonStore(db store.DBTX) *PostgresLessonStore {
	return &PostgresLessonStore{db: db}
}

// WithTx returns a new LessonStore instance that uses the provided transaction.
func (s *PostgresLessonStore) WithTx(tx *sql.Tx) store.LessonStore {
	return &PostgresLessonStore{db: tx}
}

// Create saves a new lesson to the database.
func (s *PostgresLessonStore) Create(ctx context.Context, lesson *domain.Lesson) error {
	log := logger.FromContext(ctx)

	if err := lesson.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO lessons (id, module_id, type, position, placeholder, content,
			completed_at, score, time_spent_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		lesson.ID,
		lesson.ModuleID,
		lesson.Type,
		lesson.Position,
		lesson.Placeholder,
		nullRawMessage(lesson.Content),
		lesson.CompletedAt,
		lesson.Score,
		lesson.TimeSpentSeconds,
		lesson.CreatedAt,
		lesson.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create lesson",
			"lesson_id", lesson.ID,
			"module_id", lesson.ModuleID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a lesson by its unique ID.
func (s *PostgresLessonStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	lesson, err := scanLesson(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrLessonNotFound
		}
		return nil, MapError(err)
	}

	return lesson, nil
}

// ListByModule retrieves a module's lessons ordered by position.
func (s *PostgresLessonStore) ListByModule(ctx context.Context, moduleID uuid.UUID) ([]domain.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE module_id = $1 ORDER BY position ASC`
	return s.queryLessons(ctx, query, moduleID)
}

// ListByTrail retrieves every lesson belonging to a trail, ordered by module
// position then lesson position.
func (s *PostgresLessonStore) ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.Lesson, error) {
	query := `
		SELECT l.id, l.module_id, l.type, l.position, l.placeholder, l.content,
			l.completed_at, l.score, l.time_spent_seconds, l.created_at, l.updated_at
		FROM lessons l
		JOIN trail_modules m ON m.id = l.module_id
		WHERE m.trail_id = $1
		ORDER BY m.position ASC, l.position ASC
	`
	return s.queryLessons(ctx, query, trailID)
}

// Update saves changes to an existing lesson.
func (s *PostgresLessonStore) Update(ctx context.Context, lesson *domain.Lesson) error {
	log := logger.FromContext(ctx)

	if err := lesson.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE lessons
		SET placeholder = $1, content = $2, completed_at = $3, score = $4,
			time_spent_seconds = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		lesson.Placeholder,
		nullRawMessage(lesson.Content),
		lesson.CompletedAt,
		lesson.Score,
		lesson.TimeSpentSeconds,
		lesson.UpdatedAt,
		lesson.ID,
	)
	if err != nil {
		log.Error("failed to update lesson", "lesson_id", lesson.ID, "error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrLessonNotFound
	}

	return nil
}

func (s *PostgresLessonStore) queryLessons(ctx context.Context, query string, args ...any) ([]domain.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var lessons []domain.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, MapError(err)
		}
		lessons = append(lessons, *lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return lessons, nil
}

func scanLesson(row rowScanner) (*domain.Lesson, error) {
	var lesson domain.Lesson
	var content []byte

	err := row.Scan(
		&lesson.ID,
		&lesson.ModuleID,
		&lesson.Type,
		&lesson.Position,
		&lesson.Placeholder,
		&content,
		&lesson.CompletedAt,
		&lesson.Score,
		&lesson.TimeSpentSeconds,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(content) > 0 {
		lesson.Content = content
	}
	return &lesson, nil
}

// nullRawMessage converts empty JSON content to NULL.
func nullRawMessage(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
