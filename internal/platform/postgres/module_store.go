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

const moduleColumns = `id, trail_id, competency_id, position, status, created_at, updated_at`

// PostgresModuleStore implements the store.ModuleStore interface using PostgreSQL.
type PostgresModuleStore struct {
	db store.DBTX
}

// NewPostgresModuleStore creates a new PostgresModuleStore.
func NewPostgresModuleStore(db store.DBTX) *PostgresModuleStore {
	return &PostgresModuleStore{db: db}
}

// WithTx returns a new ModuleStore instance that uses the provided transaction.
func (s *PostgresModuleStore) WithTx(tx *sql.Tx) store.ModuleStore {
	return &PostgresModuleStore{db: tx}
}

// Create saves a new module to the database.
func (s *PostgresModuleStore) Create(ctx context.Context, module *domain.TrailModule) error {
	log := logger.FromContext(ctx)

	if err := module.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO trail_modules (id, trail_id, competency_id, position, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		module.ID,
		module.TrailID,
		module.CompetencyID,
		module.Position,
		module.Status,
		module.CreatedAt,
		module.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create module",
			"module_id", module.ID,
			"trail_id", module.TrailID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a module by its unique ID.
func (s *PostgresModuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrailModule, error) {
	query := `SELECT ` + moduleColumns + ` FROM trail_modules WHERE id = $1`

	var module domain.TrailModule
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&module.ID,
		&module.TrailID,
		&module.CompetencyID,
		&module.Position,
		&module.Status,
		&module.CreatedAt,
		&module.UpdatedAt,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrModuleNotFound
		}
		return nil, MapError(err)
	}

	return &module, nil
}

// ListByTrail retrieves a trail's modules ordered by position.
func (s *PostgresModuleStore) ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.TrailModule, error) {
	query := `SELECT ` + moduleColumns + ` FROM trail_modules WHERE trail_id = $1 ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, trailID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var modules []domain.TrailModule
	for rows.Next() {
		var module domain.TrailModule
		err := rows.Scan(
			&module.ID,
			&module.TrailID,
			&module.CompetencyID,
			&module.Position,
			&module.Status,
			&module.CreatedAt,
			&module.UpdatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		modules = append(modules, module)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return modules, nil
}

// Update saves changes to an existing module.
func (s *PostgresModuleStore) Update(ctx context.Context, module *domain.TrailModule) error {
	log := logger.FromContext(ctx)

	if err := module.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE trail_modules
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, module.Status, module.UpdatedAt, module.ID)
	if err != nil {
		log.Error("failed to update module", "module_id", module.ID, "error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrModuleNotFound
	}

	return nil
}
