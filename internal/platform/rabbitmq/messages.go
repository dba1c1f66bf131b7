package rabbitmq

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
)

// GenerationMessage is the wire payload of a generation job publish. The
// database row is the source of truth; the message only tells a worker which
// job to claim, plus enough context to log usefully before the row is loaded.
type GenerationMessage struct {
	JobID     uuid.UUID       `json:"job_id"`
	TrailID   uuid.UUID       `json:"trail_id"`
	StudentID uuid.UUID       `json:"student_id"`
	JobType   domain.JobType  `json:"job_type"`
	Priority  int             `json:"priority"`
	Gaps      json.RawMessage `json:"gaps,omitempty"`
}

// NewGenerationMessage builds the wire payload for a job.
func NewGenerationMessage(j *domain.TrailGenerationJob) GenerationMessage {
	return GenerationMessage{
		JobID:     j.ID,
		TrailID:   j.TrailID,
		StudentID: j.StudentID,
		JobType:   j.JobType,
		Priority:  j.Priority,
		Gaps:      j.Gaps,
	}
}

// NotificationMessage announces a trail status change to downstream consumers.
type NotificationMessage struct {
	TrailID   uuid.UUID          `json:"trail_id"`
	StudentID uuid.UUID          `json:"student_id"`
	Status    domain.TrailStatus `json:"status"`
}
