package api

import (
	"encoding/json"
	"time"

	"github.com/lingotrail/trail-api/internal/domain"
)

// TrailResponse represents the response data for a trail.
type TrailResponse struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	Language        string     `json:"language"`
	Level           string     `json:"level"`
	Status          string     `json:"status"`
	PreviousTrailID *string    `json:"previous_trail_id,omitempty"`
	RefreshReason   string     `json:"refresh_reason,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ModuleResponse represents the response data for a trail module.
type ModuleResponse struct {
	ID           string    `json:"id"`
	TrailID      string    `json:"trail_id"`
	CompetencyID string    `json:"competency_id"`
	Position     int       `json:"position"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LessonResponse represents the response data for a lesson. Content is nil
// for placeholder lessons still awaiting generation.
type LessonResponse struct {
	ID          string      `json:"id"`
	ModuleID    string      `json:"module_id"`
	Type        string      `json:"type"`
	Position    int         `json:"position"`
	Placeholder bool        `json:"placeholder"`
	Content     interface{} `json:"content,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Score       *float64    `json:"score,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// JobResponse represents the response data for a generation job.
type JobResponse struct {
	ID           string     `json:"id"`
	TrailID      string     `json:"trail_id"`
	Status       string     `json:"status"`
	JobType      string     `json:"job_type"`
	AttemptCount int        `json:"attempt_count"`
	MaxAttempts  int        `json:"max_attempts"`
	LastError    string     `json:"last_error,omitempty"`
	QueuedAt     time.Time  `json:"queued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
}

// ProgressResponse represents the response data for a trail progress rollup.
type ProgressResponse struct {
	TrailID            string    `json:"trail_id"`
	TotalLessons       int       `json:"total_lessons"`
	LessonsCompleted   int       `json:"lessons_completed"`
	ProgressPercentage float64   `json:"progress_percentage"`
	AverageScore       *float64  `json:"average_score,omitempty"`
	TimeSpentMinutes   int       `json:"time_spent_minutes"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CompleteLessonResponse bundles the updated lesson with the recomputed
// trail progress.
type CompleteLessonResponse struct {
	Lesson   LessonResponse   `json:"lesson"`
	Progress ProgressResponse `json:"progress"`
}

// CancelJobsResponse reports how many active jobs a cancel request affected.
type CancelJobsResponse struct {
	CancelledJobs int64 `json:"cancelled_jobs"`
}

func trailToResponse(trail *domain.Trail) TrailResponse {
	resp := TrailResponse{
		ID:            trail.ID.String(),
		StudentID:     trail.StudentID.String(),
		Language:      trail.Language,
		Level:         trail.Level,
		Status:        string(trail.Status),
		RefreshReason: trail.RefreshReason,
		ArchivedAt:    trail.ArchivedAt,
		CreatedAt:     trail.CreatedAt,
		UpdatedAt:     trail.UpdatedAt,
	}
	if trail.PreviousTrailID != nil {
		previous := trail.PreviousTrailID.String()
		resp.PreviousTrailID = &previous
	}
	return resp
}

func moduleToResponse(module domain.TrailModule) ModuleResponse {
	return ModuleResponse{
		ID:           module.ID.String(),
		TrailID:      module.TrailID.String(),
		CompetencyID: module.CompetencyID.String(),
		Position:     module.Position,
		Status:       string(module.Status),
		CreatedAt:    module.CreatedAt,
		UpdatedAt:    module.UpdatedAt,
	}
}

func lessonToResponse(lesson domain.Lesson) LessonResponse {
	resp := LessonResponse{
		ID:          lesson.ID.String(),
		ModuleID:    lesson.ModuleID.String(),
		Type:        lesson.Type,
		Position:    lesson.Position,
		Placeholder: lesson.Placeholder,
		CompletedAt: lesson.CompletedAt,
		Score:       lesson.Score,
		CreatedAt:   lesson.CreatedAt,
		UpdatedAt:   lesson.UpdatedAt,
	}
	if len(lesson.Content) > 0 {
		var content interface{}
		if err := json.Unmarshal(lesson.Content, &content); err != nil {
			content = string(lesson.Content)
		}
		resp.Content = content
	}
	return resp
}

func jobToResponse(j domain.TrailGenerationJob) JobResponse {
	return JobResponse{
		ID:           j.ID.String(),
		TrailID:      j.TrailID.String(),
		Status:       string(j.Status),
		JobType:      string(j.JobType),
		AttemptCount: j.AttemptCount,
		MaxAttempts:  j.MaxAttempts,
		LastError:    j.LastError,
		QueuedAt:     j.QueuedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		FailedAt:     j.FailedAt,
		NextRetryAt:  j.NextRetryAt,
	}
}

func progressToResponse(progress *domain.TrailProgress) ProgressResponse {
	return ProgressResponse{
		TrailID:            progress.TrailID.String(),
		TotalLessons:       progress.TotalLessons,
		LessonsCompleted:   progress.LessonsCompleted,
		ProgressPercentage: progress.ProgressPercentage,
		AverageScore:       progress.AverageScore,
		TimeSpentMinutes:   progress.TimeSpentMinutes,
		UpdatedAt:          progress.UpdatedAt,
	}
}
