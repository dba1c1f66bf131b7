// Package api provides HTTP handlers for the trail API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/api/shared"
	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/redact"
)

// TrailService is the service surface the handler depends on.
type TrailService interface {
	Generate(ctx context.Context, studentID uuid.UUID, language, level string) (*domain.Trail, error)
	Get(ctx context.Context, studentID, trailID uuid.UUID) (*domain.Trail, error)
	GetActive(ctx context.Context, studentID uuid.UUID, language string) (*domain.Trail, error)
	List(ctx context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error)
	Refresh(ctx context.Context, studentID, trailID uuid.UUID, reason string) (*domain.Trail, error)
	Archive(ctx context.Context, studentID, trailID uuid.UUID) (*domain.Trail, error)
	Cancel(ctx context.Context, studentID, trailID uuid.UUID) (int64, error)
	ListModules(ctx context.Context, studentID, trailID uuid.UUID) ([]domain.TrailModule, error)
	ListLessons(ctx context.Context, studentID, trailID, moduleID uuid.UUID) ([]domain.Lesson, error)
	ListJobs(ctx context.Context, studentID, trailID uuid.UUID) ([]domain.TrailGenerationJob, error)
	CompleteLesson(ctx context.Context, studentID, lessonID uuid.UUID, score float64, timeSpentSeconds int) (*domain.Lesson, *domain.TrailProgress, error)
	GetProgress(ctx context.Context, studentID, trailID uuid.UUID) (*domain.TrailProgress, error)
}

// TrailHandler handles trail-related HTTP requests.
type TrailHandler struct {
	trailService TrailService
	logger       *slog.Logger
}

// NewTrailHandler creates a new TrailHandler.
func NewTrailHandler(trailService TrailService, logger *slog.Logger) *TrailHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TrailHandler")
	}

	return &TrailHandler{
		trailService: trailService,
		logger:       logger.With(slog.String("component", "trail_handler")),
	}
}

// GenerateTrailRequest represents the request body for a generation request.
type GenerateTrailRequest struct {
	Language string `json:"language" validate:"required,min=2,max=16"`
	Level    string `json:"level"    validate:"required,min=2,max=16"`
}

// Generate handles POST /trails/generate. It accepts the generation request
// and returns the trail immediately; clients poll the trail resource while
// workers fill it in.
func (h *TrailHandler) Generate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}

	var req GenerateTrailRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("student_id", studentID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	trail, err := h.trailService.Generate(r.Context(), studentID, req.Language, req.Level)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("trail generation accepted",
		slog.String("student_id", studentID.String()),
		slog.String("trail_id", trail.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, trailToResponse(trail))
}

// List handles GET /trails requests, optionally filtered by ?lang=.
func (h *TrailHandler) List(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}

	trails, err := h.trailService.List(r.Context(), studentID, r.URL.Query().Get("lang"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]TrailResponse, 0, len(trails))
	for _, trail := range trails {
		responses = append(responses, trailToResponse(trail))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetActive handles GET /trails/active?lang= requests, returning the
// student's non-archived trail for the language.
func (h *TrailHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}

	language := r.URL.Query().Get("lang")
	if language == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing lang parameter")
		return
	}

	trail, err := h.trailService.GetActive(r.Context(), studentID, language)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, trailToResponse(trail))
}

// Get handles GET /trails/{id} requests. Trails are returned even
// mid-generation so clients can render partial content.
func (h *TrailHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	trail, err := h.trailService.Get(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, trailToResponse(trail))
}

// RefreshTrailRequest represents the request body for a refresh request.
type RefreshTrailRequest struct {
	Reason string `json:"reason" validate:"required,oneof=level_change staleness student_request curriculum_update"`
}

// Refresh handles POST /trails/{id}/refresh. The old trail is archived and a
// replacement is generated in its place.
func (h *TrailHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RefreshTrailRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	replacement, err := h.trailService.Refresh(r.Context(), studentID, trailID, req.Reason)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("trail refresh accepted",
		slog.String("previous_trail_id", trailID.String()),
		slog.String("trail_id", replacement.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, trailToResponse(replacement))
}

// Archive handles DELETE /trails/{id}. Archiving is idempotent; repeating
// the call returns the already-archived trail.
func (h *TrailHandler) Archive(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	trail, err := h.trailService.Archive(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, trailToResponse(trail))
}

// CancelJobs handles POST /trails/{id}/cancel, marking the trail's active
// generation jobs cancelled.
func (h *TrailHandler) CancelJobs(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	cancelled, err := h.trailService.Cancel(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CancelJobsResponse{CancelledJobs: cancelled})
}

// ListModules handles GET /trails/{id}/modules requests.
func (h *TrailHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	modules, err := h.trailService.ListModules(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ModuleResponse, 0, len(modules))
	for _, module := range modules {
		responses = append(responses, moduleToResponse(module))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// ListLessons handles GET /trails/{id}/modules/{moduleID}/lessons requests.
func (h *TrailHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}
	moduleID, ok := getPathUUID(w, r, "moduleID")
	if !ok {
		return
	}

	lessons, err := h.trailService.ListLessons(r.Context(), studentID, trailID, moduleID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]LessonResponse, 0, len(lessons))
	for _, lesson := range lessons {
		responses = append(responses, lessonToResponse(lesson))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// ListJobs handles GET /trails/{id}/jobs requests, newest job first.
func (h *TrailHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	jobs, err := h.trailService.ListJobs(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		responses = append(responses, jobToResponse(j))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetProgress handles GET /trails/{id}/progress requests.
func (h *TrailHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	trailID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.trailService.GetProgress(r.Context(), studentID, trailID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, progressToResponse(progress))
}

// CompleteLessonRequest represents the request body for recording a lesson
// completion.
type CompleteLessonRequest struct {
	Score            float64 `json:"score"              validate:"gte=0,lte=100"`
	TimeSpentSeconds int     `json:"time_spent_seconds" validate:"gte=0"`
}

// CompleteLesson handles PATCH /lessons/{id}/progress. Completion is
// last-write-wins; the response carries the recomputed trail progress.
func (h *TrailHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	studentID, ok := requireStudentID(w, r)
	if !ok {
		return
	}
	lessonID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CompleteLessonRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	lesson, progress, err := h.trailService.CompleteLesson(
		r.Context(), studentID, lessonID, req.Score, req.TimeSpentSeconds)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("lesson completion recorded",
		slog.String("lesson_id", lessonID.String()),
		slog.Float64("score", req.Score))
	shared.RespondWithJSON(w, r, http.StatusOK, CompleteLessonResponse{
		Lesson:   lessonToResponse(*lesson),
		Progress: progressToResponse(progress),
	})
}
