package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrailStatus represents the generation state of a trail.
type TrailStatus string

// Possible trail status values
const (
	TrailStatusGenerating TrailStatus = "generating"
	TrailStatusPartial    TrailStatus = "partial"
	TrailStatusReady      TrailStatus = "ready"
	TrailStatusArchived   TrailStatus = "archived"
)

// Common validation errors for Trail
var (
	ErrTrailIDEmpty        = fmt.Errorf("%w: trail ID cannot be empty", ErrValidation)
	ErrTrailStudentIDEmpty = fmt.Errorf("%w: trail student ID cannot be empty", ErrValidation)
	ErrTrailLanguageEmpty  = fmt.Errorf("%w: trail language cannot be empty", ErrValidation)
	ErrTrailLevelEmpty     = fmt.Errorf("%w: trail level cannot be empty", ErrValidation)
	ErrTrailStatusInvalid  = fmt.Errorf("%w: invalid trail status", ErrValidation)
)

// Trail is a student's personalized module/lesson sequence for one language.
// It is created in the generating state when a generation request arrives and
// its status is always derived from its modules (see TrailStatusFor), except
// for the archived flag which is terminal and set only by an explicit archive.
type Trail struct {
	ID                uuid.UUID   `json:"id"`
	StudentID         uuid.UUID   `json:"student_id"`
	Language          string      `json:"language"`
	Level             string      `json:"level"`
	Status            TrailStatus `json:"status"`
	ContentHash       string      `json:"content_hash,omitempty"`
	CurriculumVersion string      `json:"curriculum_version,omitempty"`
	PreviousTrailID   *uuid.UUID  `json:"previous_trail_id,omitempty"`
	RefreshReason     string      `json:"refresh_reason,omitempty"`
	ArchivedAt        *time.Time  `json:"archived_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewTrail creates a new Trail for the given student and language in the
// generating state. Returns an error if validation fails.
func NewTrail(studentID uuid.UUID, language, level, curriculumVersion string) (*Trail, error) {
	now := time.Now().UTC()
	trail := &Trail{
		ID:                uuid.New(),
		StudentID:         studentID,
		Language:          language,
		Level:             level,
		Status:            TrailStatusGenerating,
		CurriculumVersion: curriculumVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := trail.Validate(); err != nil {
		return nil, err
	}

	return trail, nil
}

// NewRefreshTrail creates the replacement Trail for a refresh. The new trail
// points back at the trail it replaces and starts generating from scratch.
func NewRefreshTrail(previous *Trail, reason string) (*Trail, error) {
	trail, err := NewTrail(previous.StudentID, previous.Language, previous.Level, previous.CurriculumVersion)
	if err != nil {
		return nil, err
	}

	prevID := previous.ID
	trail.PreviousTrailID = &prevID
	trail.RefreshReason = reason
	return trail, nil
}

// Validate checks if the Trail has valid data.
func (t *Trail) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTrailIDEmpty
	}

	if t.StudentID == uuid.Nil {
		return ErrTrailStudentIDEmpty
	}

	if t.Language == "" {
		return ErrTrailLanguageEmpty
	}

	if t.Level == "" {
		return ErrTrailLevelEmpty
	}

	if !isValidTrailStatus(t.Status) {
		return ErrTrailStatusInvalid
	}

	return nil
}

// IsArchived reports whether the trail has been archived. Archived trails are
// excluded from active-trail lookups and never flip back.
func (t *Trail) IsArchived() bool {
	return t.Status == TrailStatusArchived
}

// Archive marks the trail archived and records the archive timestamp.
// Archiving is idempotent; the original timestamp is kept.
func (t *Trail) Archive() {
	if t.IsArchived() {
		return
	}

	now := time.Now().UTC()
	t.Status = TrailStatusArchived
	t.ArchivedAt = &now
	t.UpdatedAt = now
}

func isValidTrailStatus(status TrailStatus) bool {
	switch status {
	case TrailStatusGenerating, TrailStatusPartial, TrailStatusReady, TrailStatusArchived:
		return true
	default:
		return false
	}
}
