package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModuleStatus represents the readiness of a trail module.
type ModuleStatus string

// Possible module status values
const (
	ModuleStatusPending ModuleStatus = "pending"
	ModuleStatusReady   ModuleStatus = "ready"
)

// Common validation errors for TrailModule
var (
	ErrModuleIDEmpty           = fmt.Errorf("%w: module ID cannot be empty", ErrValidation)
	ErrModuleTrailIDEmpty      = fmt.Errorf("%w: module trail ID cannot be empty", ErrValidation)
	ErrModuleCompetencyIDEmpty = fmt.Errorf("%w: module competency ID cannot be empty", ErrValidation)
	ErrModulePositionNegative  = fmt.Errorf("%w: module position cannot be negative", ErrValidation)
	ErrModuleStatusInvalid     = fmt.Errorf("%w: invalid module status", ErrValidation)
)

// TrailModule is a competency-focused grouping of lessons within a trail.
// A module is ready once it has at least one lesson and none of its lessons
// are placeholders (see ModuleStatusFor).
type TrailModule struct {
	ID           uuid.UUID    `json:"id"`
	TrailID      uuid.UUID    `json:"trail_id"`
	CompetencyID uuid.UUID    `json:"competency_id"`
	Position     int          `json:"position"`
	Status       ModuleStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewTrailModule creates a pending module at the given position within a trail.
func NewTrailModule(trailID, competencyID uuid.UUID, position int) (*TrailModule, error) {
	now := time.Now().UTC()
	module := &TrailModule{
		ID:           uuid.New(),
		TrailID:      trailID,
		CompetencyID: competencyID,
		Position:     position,
		Status:       ModuleStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := module.Validate(); err != nil {
		return nil, err
	}

	return module, nil
}

// Validate checks if the TrailModule has valid data.
func (m *TrailModule) Validate() error {
	if m.ID == uuid.Nil {
		return ErrModuleIDEmpty
	}

	if m.TrailID == uuid.Nil {
		return ErrModuleTrailIDEmpty
	}

	if m.CompetencyID == uuid.Nil {
		return ErrModuleCompetencyIDEmpty
	}

	if m.Position < 0 {
		return ErrModulePositionNegative
	}

	if m.Status != ModuleStatusPending && m.Status != ModuleStatusReady {
		return ErrModuleStatusInvalid
	}

	return nil
}

// IsReady reports whether the module has been fully generated.
func (m *TrailModule) IsReady() bool {
	return m.Status == ModuleStatusReady
}
