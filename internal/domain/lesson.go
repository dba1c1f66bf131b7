package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Lesson
var (
	ErrLessonIDEmpty           = fmt.Errorf("%w: lesson ID cannot be empty", ErrValidation)
	ErrLessonModuleIDEmpty     = fmt.Errorf("%w: lesson module ID cannot be empty", ErrValidation)
	ErrLessonTypeEmpty         = fmt.Errorf("%w: lesson type cannot be empty", ErrValidation)
	ErrLessonPositionNegative  = fmt.Errorf("%w: lesson position cannot be negative", ErrValidation)
	ErrLessonScoreOutOfRange   = fmt.Errorf("%w: lesson score must be between 0 and 100", ErrValidation)
	ErrLessonTimeSpentNegative = fmt.Errorf("%w: lesson time spent cannot be negative", ErrValidation)
)

// Lesson is a single unit of learnable content within a module. A lesson is
// either a placeholder (reserved slot awaiting generated content) or carries
// its generated content as a JSON document. Completion is derived from
// CompletedAt; there is no separately stored completion flag.
type Lesson struct {
	ID               uuid.UUID       `json:"id"`
	ModuleID         uuid.UUID       `json:"module_id"`
	Type             string          `json:"type"`
	Position         int             `json:"position"`
	Placeholder      bool            `json:"placeholder"`
	Content          json.RawMessage `json:"content,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Score            *float64        `json:"score,omitempty"`
	TimeSpentSeconds *int            `json:"time_spent_seconds,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewPlaceholderLesson creates a lesson slot awaiting generated content.
func NewPlaceholderLesson(moduleID uuid.UUID, lessonType string, position int) (*Lesson, error) {
	now := time.Now().UTC()
	lesson := &Lesson{
		ID:          uuid.New(),
		ModuleID:    moduleID,
		Type:        lessonType,
		Position:    position,
		Placeholder: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := lesson.Validate(); err != nil {
		return nil, err
	}

	return lesson, nil
}

// Validate checks if the Lesson has valid data.
func (l *Lesson) Validate() error {
	if l.ID == uuid.Nil {
		return ErrLessonIDEmpty
	}

	if l.ModuleID == uuid.Nil {
		return ErrLessonModuleIDEmpty
	}

	if l.Type == "" {
		return ErrLessonTypeEmpty
	}

	if l.Position < 0 {
		return ErrLessonPositionNegative
	}

	return nil
}

// Fill replaces the placeholder slot with generated content. Filling an
// already generated lesson overwrites its content, which keeps retried
// generation idempotent.
func (l *Lesson) Fill(content json.RawMessage) {
	l.Content = content
	l.Placeholder = false
	l.UpdatedAt = time.Now().UTC()
}

// IsCompleted reports whether the lesson has been completed by the student.
func (l *Lesson) IsCompleted() bool {
	return l.CompletedAt != nil
}

// Complete records a completion with the given score and time spent. The
// operation is last-write-wins: repeated or retried calls overwrite the
// previous completion, so the final state always equals the latest call.
func (l *Lesson) Complete(score float64, timeSpentSeconds int) error {
	if score < 0 || score > 100 {
		return ErrLessonScoreOutOfRange
	}

	if timeSpentSeconds < 0 {
		return ErrLessonTimeSpentNegative
	}

	now := time.Now().UTC()
	l.CompletedAt = &now
	l.Score = &score
	l.TimeSpentSeconds = &timeSpentSeconds
	l.UpdatedAt = now
	return nil
}
