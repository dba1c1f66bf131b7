package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
)

// ContentBlockStore defines the interface for the shared, hash-addressed
// content cache. Rows are cross-trail and cross-student; usage counters are
// only ever incremented atomically.
type ContentBlockStore interface {
	// GetByHash retrieves a content block by its content hash.
	// Returns ErrContentBlockNotFound if no block with the hash exists.
	GetByHash(ctx context.Context, contentHash string) (*domain.ContentBlock, error)

	// ListApprovedByDescriptor retrieves approved blocks for a (descriptor,
	// language, type) triple, most used first. These are the reuse candidates
	// offered to similarity ranking before fresh generation.
	ListApprovedByDescriptor(ctx context.Context, descriptorID uuid.UUID, language, blockType string) ([]domain.ContentBlock, error)

	// Create saves a new content block.
	// Returns ErrContentHashExists if a block with the same hash already
	// exists; find-or-create callers treat that as success and re-fetch.
	Create(ctx context.Context, block *domain.ContentBlock) error

	// IncrementUsage atomically increments the block's usage counter.
	// Never read-modify-write: the increment happens in SQL so concurrent
	// reuse cannot lose updates.
	IncrementUsage(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new ContentBlockStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ContentBlockStore
}

// BlueprintStore defines the interface for blueprint persistence.
type BlueprintStore interface {
	// GetByID retrieves a blueprint by its unique ID.
	// Returns ErrBlueprintNotFound if the blueprint does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Blueprint, error)

	// ListApproved retrieves approved blueprints for a (language, level)
	// pair ranked by usage count descending, then average completion rate
	// descending with nulls last, then creation order ascending. The
	// ordering is total, so matching is deterministic.
	ListApproved(ctx context.Context, language, level string) ([]domain.Blueprint, error)

	// IncrementUsage atomically increments the blueprint's usage counter.
	IncrementUsage(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new BlueprintStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BlueprintStore
}

// ProgressStore defines the interface for the denormalized trail progress rollup.
type ProgressStore interface {
	// Upsert writes the rollup for a trail, replacing any previous row.
	Upsert(ctx context.Context, progress *domain.TrailProgress) error

	// GetByTrail retrieves the rollup for a trail.
	// Returns ErrProgressNotFound if none has been computed yet.
	GetByTrail(ctx context.Context, trailID uuid.UUID) (*domain.TrailProgress, error)

	// WithTx returns a new ProgressStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProgressStore
}

// CurriculumStore defines read access to the curriculum reference data.
// The curriculum is read-mostly; this store never mutates it.
type CurriculumStore interface {
	// GetLevelByCode retrieves a level by its code (e.g. "a2").
	// Returns ErrLevelNotFound if the level does not exist.
	GetLevelByCode(ctx context.Context, code string) (*domain.Level, error)

	// GetCompetencyByCode retrieves a competency by its code.
	// Returns ErrCompetencyNotFound if the competency does not exist.
	GetCompetencyByCode(ctx context.Context, code string) (*domain.Competency, error)

	// ListCompetenciesForLevel retrieves the competencies linked into a
	// level, ordered by their position in the level.
	ListCompetenciesForLevel(ctx context.Context, levelID uuid.UUID) ([]domain.Competency, error)

	// ListDescriptors retrieves the descriptors for a (level, competency)
	// pair ordered by position.
	ListDescriptors(ctx context.Context, levelID, competencyID uuid.UUID) ([]domain.Descriptor, error)
}
