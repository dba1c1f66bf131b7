package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/store"
)

const blueprintColumns = `id, language, level, preference_pattern, structure,
	approved, usage_count, avg_completion_rate, created_at`

// PostgresBlueprintStore implements the store.BlueprintStore interface using
// PostgreSQL.
type PostgresBlueprintStore struct {
	db store.DBTX
}

// NewPostgresBlueprintStore creates a new PostgresBlueprintStore.
func NewPostgresBlueprintStore(db store.DBTX) *PostgresBlueprintStore {
	return &PostgresBlueprintStore{db: db}
}

// WithTx returns a new BlueprintStore instance that uses the provided transaction.
func (s *PostgresBlueprintStore) WithTx(tx *sql.Tx) store.BlueprintStore {
	return &PostgresBlueprintStore{db: tx}
}

// GetByID retrieves a blueprint by its unique ID.
func (s *PostgresBlueprintStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Blueprint, error) {
	query := `SELECT ` + blueprintColumns + ` FROM blueprints WHERE id = $1`

	blueprint, err := scanBlueprint(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrBlueprintNotFound
		}
		return nil, MapError(err)
	}

	return blueprint, nil
}

// ListApproved retrieves approved blueprints for a (language, level) pair.
// The ORDER BY ends on id so the ranking is total and matching stays
// deterministic even between blueprints created in the same instant.
func (s *PostgresBlueprintStore) ListApproved(ctx context.Context, language, level string) ([]domain.Blueprint, error) {
	query := `
		SELECT ` + blueprintColumns + `
		FROM blueprints
		WHERE language = $1 AND level = $2 AND approved = TRUE
		ORDER BY usage_count DESC, avg_completion_rate DESC NULLS LAST, created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, language, level)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var blueprints []domain.Blueprint
	for rows.Next() {
		blueprint, err := scanBlueprint(rows)
		if err != nil {
			return nil, MapError(err)
		}
		blueprints = append(blueprints, *blueprint)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return blueprints, nil
}

// IncrementUsage atomically increments the blueprint's usage counter.
func (s *PostgresBlueprintStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE blueprints SET usage_count = usage_count + 1 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrBlueprintNotFound
	}

	return nil
}

func scanBlueprint(row rowScanner) (*domain.Blueprint, error) {
	var blueprint domain.Blueprint
	var preferencePattern, structure []byte

	err := row.Scan(
		&blueprint.ID,
		&blueprint.Language,
		&blueprint.Level,
		&preferencePattern,
		&structure,
		&blueprint.Approved,
		&blueprint.UsageCount,
		&blueprint.AvgCompletionRate,
		&blueprint.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(preferencePattern) > 0 {
		blueprint.PreferencePattern = preferencePattern
	}
	blueprint.Structure = structure
	return &blueprint, nil
}
