package domain

import (
	"time"

	"github.com/google/uuid"
)

// Level is one proficiency level of the curriculum (e.g. A1..C2).
type Level struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// Competency is a teachable skill area (e.g. listening, grammar).
type Competency struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Domain string    `json:"domain,omitempty"`
}

// Descriptor is a curriculum "can-do" statement anchoring generated content
// to a level and competency.
type Descriptor struct {
	ID           uuid.UUID `json:"id"`
	LevelID      uuid.UUID `json:"level_id"`
	CompetencyID uuid.UUID `json:"competency_id"`
	Code         string    `json:"code"`
	Text         string    `json:"text"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}
