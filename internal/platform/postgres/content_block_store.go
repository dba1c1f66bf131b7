package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

const contentBlockColumns = `id, content_hash, descriptor_id, language, type,
	payload, quality_score, usage_count, approved, created_at, updated_at`

// PostgresContentBlockStore implements the store.ContentBlockStore interface
// using PostgreSQL.
type PostgresContentBlockStore struct {
	db store.DBTX
}

// NewPostgresContentBlockStore creates a new PostgresContentBlockStore.
func NewPostgresContentBlockStore(db store.DBTX) *PostgresContentBlockStore {
	return &PostgresContentBlockStore{db: db}
}

// WithTx returns a new ContentBlockStore instance that uses the provided transaction.
func (s *PostgresContentBlockStore) WithTx(tx *sql.Tx) store.ContentBlockStore {
	return &PostgresContentBlockStore{db: tx}
}

// GetByHash retrieves a content block by its content hash.
func (s *PostgresContentBlockStore) GetByHash(ctx context.Context, contentHash string) (*domain.ContentBlock, error) {
	query := `SELECT ` + contentBlockColumns + ` FROM content_blocks WHERE content_hash = $1`

	block, err := scanContentBlock(s.db.QueryRowContext(ctx, query, contentHash))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrContentBlockNotFound
		}
		return nil, MapError(err)
	}

	return block, nil
}

// ListApprovedByDescriptor retrieves approved blocks for a (descriptor,
// language, type) triple, most used first.
func (s *PostgresContentBlockStore) ListApprovedByDescriptor(ctx context.Context, descriptorID uuid.UUID, language, blockType string) ([]domain.ContentBlock, error) {
	query := `
		SELECT ` + contentBlockColumns + `
		FROM content_blocks
		WHERE descriptor_id = $1 AND language = $2 AND type = $3 AND approved = TRUE
		ORDER BY usage_count DESC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, descriptorID, language, blockType)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var blocks []domain.ContentBlock
	for rows.Next() {
		block, err := scanContentBlock(rows)
		if err != nil {
			return nil, MapError(err)
		}
		blocks = append(blocks, *block)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return blocks, nil
}

// Create saves a new content block. A unique index on content_hash means two
// workers racing to create the same block resolve to a single row; the loser
// gets ErrContentHashExists and should re-fetch by hash.
func (s *PostgresContentBlockStore) Create(ctx context.Context, block *domain.ContentBlock) error {
	log := logger.FromContext(ctx)

	if err := block.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO content_blocks (id, content_hash, descriptor_id, language,
			type, payload, quality_score, usage_count, approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		block.ID,
		block.ContentHash,
		block.DescriptorID,
		block.Language,
		block.Type,
		[]byte(block.Payload),
		block.QualityScore,
		block.UsageCount,
		block.Approved,
		block.CreatedAt,
		block.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrDuplicate) {
			return store.ErrContentHashExists
		}
		log.Error("failed to create content block",
			"content_hash", block.ContentHash,
			"error", err)
		return mapped
	}

	return nil
}

// IncrementUsage atomically increments the block's usage counter.
func (s *PostgresContentBlockStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE content_blocks
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrContentBlockNotFound
	}

	return nil
}

func scanContentBlock(row rowScanner) (*domain.ContentBlock, error) {
	var block domain.ContentBlock
	var payload []byte

	err := row.Scan(
		&block.ID,
		&block.ContentHash,
		&block.DescriptorID,
		&block.Language,
		&block.Type,
		&payload,
		&block.QualityScore,
		&block.UsageCount,
		&block.Approved,
		&block.CreatedAt,
		&block.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	block.Payload = payload
	return &block, nil
}
