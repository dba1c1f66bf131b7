package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/store"
)

// PostgresCurriculumStore implements the store.CurriculumStore interface using
// PostgreSQL. The curriculum tables are reference data seeded by migrations;
// this store only reads them, so it carries no WithTx variant.
type PostgresCurriculumStore struct {
	db store.DBTX
}

// NewPostgresCurriculumStore creates a new PostgresCurriculumStore.
func NewPostgresCurriculumStore(db store.DBTX) *PostgresCurriculumStore {
	return &PostgresCurriculumStore{db: db}
}

// GetLevelByCode retrieves a level by its code.
func (s *PostgresCurriculumStore) GetLevelByCode(ctx context.Context, code string) (*domain.Level, error) {
	query := `SELECT id, code, name, position FROM levels WHERE code = $1`

	var level domain.Level
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&level.ID,
		&level.Code,
		&level.Name,
		&level.Position,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrLevelNotFound
		}
		return nil, MapError(err)
	}

	return &level, nil
}

// GetCompetencyByCode retrieves a competency by its code.
func (s *PostgresCurriculumStore) GetCompetencyByCode(ctx context.Context, code string) (*domain.Competency, error) {
	query := `SELECT id, code, name, COALESCE(domain, '') FROM competencies WHERE code = $1`

	var competency domain.Competency
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&competency.ID,
		&competency.Code,
		&competency.Name,
		&competency.Domain,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrCompetencyNotFound
		}
		return nil, MapError(err)
	}

	return &competency, nil
}

// ListCompetenciesForLevel retrieves the competencies linked into a level,
// ordered by their position in the level.
func (s *PostgresCurriculumStore) ListCompetenciesForLevel(ctx context.Context, levelID uuid.UUID) ([]domain.Competency, error) {
	query := `
		SELECT c.id, c.code, c.name, COALESCE(c.domain, '')
		FROM competencies c
		JOIN level_competencies lc ON lc.competency_id = c.id
		WHERE lc.level_id = $1
		ORDER BY lc.position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, levelID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var competencies []domain.Competency
	for rows.Next() {
		var competency domain.Competency
		err := rows.Scan(
			&competency.ID,
			&competency.Code,
			&competency.Name,
			&competency.Domain,
		)
		if err != nil {
			return nil, MapError(err)
		}
		competencies = append(competencies, competency)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return competencies, nil
}

// ListDescriptors retrieves the descriptors for a (level, competency) pair
// ordered by position.
func (s *PostgresCurriculumStore) ListDescriptors(ctx context.Context, levelID, competencyID uuid.UUID) ([]domain.Descriptor, error) {
	query := `
		SELECT id, level_id, competency_id, code, text, position, created_at
		FROM descriptors
		WHERE level_id = $1 AND competency_id = $2
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, levelID, competencyID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var descriptors []domain.Descriptor
	for rows.Next() {
		var descriptor domain.Descriptor
		err := rows.Scan(
			&descriptor.ID,
			&descriptor.LevelID,
			&descriptor.CompetencyID,
			&descriptor.Code,
			&descriptor.Text,
			&descriptor.Position,
			&descriptor.CreatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		descriptors = append(descriptors, descriptor)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return descriptors, nil
}
