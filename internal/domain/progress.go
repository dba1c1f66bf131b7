package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrailProgress is the denormalized one-to-one progress rollup for a trail.
// It is a cache recomputed from the trail's lessons on every completion; it
// never drives behavior, only reads.
type TrailProgress struct {
	TrailID            uuid.UUID `json:"trail_id"`
	TotalLessons       int       `json:"total_lessons"`
	LessonsCompleted   int       `json:"lessons_completed"`
	ProgressPercentage float64   `json:"progress_percentage"`
	AverageScore       *float64  `json:"average_score,omitempty"`
	TimeSpentMinutes   int       `json:"time_spent_minutes"`
	UpdatedAt          time.Time `json:"updated_at"`
}
