package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
)

// TrailStore defines the interface for trail data persistence.
type TrailStore interface {
	// Create saves a new trail to the store.
	// Returns validation errors from the domain Trail if data is invalid.
	Create(ctx context.Context, trail *domain.Trail) error

	// GetByID retrieves a trail by its unique ID, archived or not.
	// Returns ErrTrailNotFound if the trail does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Trail, error)

	// GetActive retrieves the single non-archived trail for a (student,
	// language) pair. Returns ErrTrailNotFound if none exists.
	GetActive(ctx context.Context, studentID uuid.UUID, language string) (*domain.Trail, error)

	// ListByStudent retrieves all trails for a student, optionally filtered
	// by language (empty string means all languages), newest first.
	ListByStudent(ctx context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error)

	// Update saves changes to an existing trail.
	// Returns ErrTrailNotFound if the trail does not exist.
	Update(ctx context.Context, trail *domain.Trail) error

	// WithTx returns a new TrailStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TrailStore
}

// ModuleStore defines the interface for trail module persistence.
type ModuleStore interface {
	// Create saves a new module to the store.
	Create(ctx context.Context, module *domain.TrailModule) error

	// GetByID retrieves a module by its unique ID.
	// Returns ErrModuleNotFound if the module does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TrailModule, error)

	// ListByTrail retrieves a trail's modules ordered by position.
	ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.TrailModule, error)

	// Update saves changes to an existing module.
	// Returns ErrModuleNotFound if the module does not exist.
	Update(ctx context.Context, module *domain.TrailModule) error

	// WithTx returns a new ModuleStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ModuleStore
}

// LessonStore defines the interface for lesson persistence.
type LessonStore interface {
	// Create saves a new lesson to the store.
	Create(ctx context.Context, lesson *domain.Lesson) error

	// GetByID retrieves a lesson by its unique ID.
	// Returns ErrLessonNotFound if the lesson does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lesson, error)

	// ListByModule retrieves a module's lessons ordered by position.
	ListByModule(ctx context.Context, moduleID uuid.UUID) ([]domain.Lesson, error)

	// ListByTrail retrieves every lesson belonging to a trail, ordered by
	// module position then lesson position. Used by progress recomputation.
	ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.Lesson, error)

	// Update saves changes to an existing lesson.
	// Returns ErrLessonNotFound if the lesson does not exist.
	Update(ctx context.Context, lesson *domain.Lesson) error

	// WithTx returns a new LessonStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) LessonStore
}
