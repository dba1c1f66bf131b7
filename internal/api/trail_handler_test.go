package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingotrail/trail-api/internal/api/middleware"
	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/service"
	"github.com/lingotrail/trail-api/internal/store"
)

// stubTrailService returns canned values per method; unset methods fail with
// the configured error.
type stubTrailService struct {
	trail    *domain.Trail
	trails   []*domain.Trail
	modules  []domain.TrailModule
	lessons  []domain.Lesson
	jobs     []domain.TrailGenerationJob
	lesson   *domain.Lesson
	progress *domain.TrailProgress
	cancel   int64
	err      error

	generateCalls []struct {
		studentID uuid.UUID
		language  string
		level     string
	}
	refreshReason string
}

func (s *stubTrailService) Generate(_ context.Context, studentID uuid.UUID, language, level string) (*domain.Trail, error) {
	s.generateCalls = append(s.generateCalls, struct {
		studentID uuid.UUID
		language  string
		level     string
	}{studentID, language, level})
	return s.trail, s.err
}

func (s *stubTrailService) Get(_ context.Context, _, _ uuid.UUID) (*domain.Trail, error) {
	return s.trail, s.err
}

func (s *stubTrailService) GetActive(_ context.Context, _ uuid.UUID, _ string) (*domain.Trail, error) {
	return s.trail, s.err
}

func (s *stubTrailService) List(_ context.Context, _ uuid.UUID, _ string) ([]*domain.Trail, error) {
	return s.trails, s.err
}

func (s *stubTrailService) Refresh(_ context.Context, _, _ uuid.UUID, reason string) (*domain.Trail, error) {
	s.refreshReason = reason
	return s.trail, s.err
}

func (s *stubTrailService) Archive(_ context.Context, _, _ uuid.UUID) (*domain.Trail, error) {
	return s.trail, s.err
}

func (s *stubTrailService) Cancel(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return s.cancel, s.err
}

func (s *stubTrailService) ListModules(_ context.Context, _, _ uuid.UUID) ([]domain.TrailModule, error) {
	return s.modules, s.err
}

func (s *stubTrailService) ListLessons(_ context.Context, _, _, _ uuid.UUID) ([]domain.Lesson, error) {
	return s.lessons, s.err
}

func (s *stubTrailService) ListJobs(_ context.Context, _, _ uuid.UUID) ([]domain.TrailGenerationJob, error) {
	return s.jobs, s.err
}

func (s *stubTrailService) CompleteLesson(_ context.Context, _, _ uuid.UUID, _ float64, _ int) (*domain.Lesson, *domain.TrailProgress, error) {
	return s.lesson, s.progress, s.err
}

func (s *stubTrailService) GetProgress(_ context.Context, _, _ uuid.UUID) (*domain.TrailProgress, error) {
	return s.progress, s.err
}

func newTestRouter(svc TrailService) http.Handler {
	handler := NewTrailHandler(svc, slog.Default())
	return NewRouter(handler, slog.Default())
}

func doRequest(t *testing.T, router http.Handler, method, path string, studentID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if studentID != "" {
		req.Header.Set(middleware.StudentIDHeader, studentID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testTrail(t *testing.T, studentID uuid.UUID) *domain.Trail {
	t.Helper()
	trail, err := domain.NewTrail(studentID, "pt", "a2", "2026.1")
	require.NoError(t, err)
	return trail
}

func TestGenerateReturnsAcceptedWithTrail(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	svc := &stubTrailService{}
	svc.trail = testTrail(t, studentID)
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/generate", studentID.String(),
		map[string]string{"language": "pt", "level": "a2"})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TrailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, svc.trail.ID.String(), resp.ID)
	assert.Equal(t, "generating", resp.Status)

	require.Len(t, svc.generateCalls, 1)
	assert.Equal(t, studentID, svc.generateCalls[0].studentID)
	assert.Equal(t, "pt", svc.generateCalls[0].language)
	assert.Equal(t, "a2", svc.generateCalls[0].level)
}

func TestGenerateRejectsMissingFields(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/generate", uuid.New().String(),
		map[string]string{"language": "pt"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.generateCalls, "invalid requests must not reach the service")
}

func TestGenerateConflictWhenActiveTrailExists(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{err: service.ErrActiveTrailExists}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/generate", uuid.New().String(),
		map[string]string{"language": "pt", "level": "a2"})

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "active trail")
}

func TestRequestsWithoutIdentityAreUnauthorized(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubTrailService{})

	rec := doRequest(t, router, http.MethodGet, "/api/trails", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/trails", "not-a-uuid", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubTrailService{})
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTrailMapsNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{err: store.ErrTrailNotFound}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/trails/"+uuid.NewString(), uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrailRejectsMalformedID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubTrailService{})
	rec := doRequest(t, router, http.MethodGet, "/api/trails/not-a-uuid", uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshValidatesReason(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	svc := &stubTrailService{}
	svc.trail = testTrail(t, studentID)
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/"+uuid.NewString()+"/refresh",
		studentID.String(), map[string]string{"reason": "bored"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/trails/"+uuid.NewString()+"/refresh",
		studentID.String(), map[string]string{"reason": "level_change"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "level_change", svc.refreshReason)
}

func TestRefreshForbiddenForOtherStudents(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{err: service.ErrNotOwned}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/"+uuid.NewString()+"/refresh",
		uuid.NewString(), map[string]string{"reason": "level_change"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestArchiveReturnsArchivedTrail(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	svc := &stubTrailService{}
	svc.trail = testTrail(t, studentID)
	svc.trail.Archive()
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodDelete, "/api/trails/"+svc.trail.ID.String(),
		studentID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TrailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "archived", resp.Status)
	assert.NotNil(t, resp.ArchivedAt)
}

func TestCancelReportsAffectedJobs(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{cancel: 2}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/api/trails/"+uuid.NewString()+"/cancel",
		uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CancelJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.CancelledJobs)
}

func TestListLessonsRendersPlaceholdersWithoutContent(t *testing.T) {
	t.Parallel()

	moduleID := uuid.New()
	placeholder, err := domain.NewPlaceholderLesson(moduleID, "vocabulary", 0)
	require.NoError(t, err)
	filled, err := domain.NewPlaceholderLesson(moduleID, "grammar", 1)
	require.NoError(t, err)
	filled.Fill([]byte(`{"exercise":"conjugation"}`))

	svc := &stubTrailService{lessons: []domain.Lesson{*placeholder, *filled}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet,
		"/api/trails/"+uuid.NewString()+"/modules/"+moduleID.String()+"/lessons",
		uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []LessonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.True(t, resp[0].Placeholder)
	assert.Nil(t, resp[0].Content)
	assert.False(t, resp[1].Placeholder)
	assert.NotNil(t, resp[1].Content)
}

func TestCompleteLessonReturnsLessonAndProgress(t *testing.T) {
	t.Parallel()

	lesson, err := domain.NewPlaceholderLesson(uuid.New(), "practice", 0)
	require.NoError(t, err)
	lesson.Fill([]byte(`{"ok":true}`))
	require.NoError(t, lesson.Complete(85, 120))

	avg := 85.0
	svc := &stubTrailService{
		lesson: lesson,
		progress: &domain.TrailProgress{
			TrailID:            uuid.New(),
			TotalLessons:       9,
			LessonsCompleted:   1,
			ProgressPercentage: 100.0 / 9.0,
			AverageScore:       &avg,
			TimeSpentMinutes:   2,
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPatch, "/api/lessons/"+lesson.ID.String()+"/progress",
		uuid.NewString(), map[string]any{"score": 85, "time_spent_seconds": 120})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CompleteLessonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Lesson.CompletedAt)
	assert.Equal(t, 1, resp.Progress.LessonsCompleted)
	require.NotNil(t, resp.Progress.AverageScore)
	assert.InDelta(t, 85.0, *resp.Progress.AverageScore, 0.001)
}

func TestCompleteLessonRejectsScoreOutOfRange(t *testing.T) {
	t.Parallel()

	svc := &stubTrailService{}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPatch, "/api/lessons/"+uuid.NewString()+"/progress",
		uuid.NewString(), map[string]any{"score": 150, "time_spent_seconds": 60})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsExposesFailureHistory(t *testing.T) {
	t.Parallel()

	j, err := domain.NewTrailGenerationJob(uuid.New(), uuid.New(), domain.JobTypeFullGeneration, 0, nil)
	require.NoError(t, err)
	j.LastError = "content provider failure"
	j.AttemptCount = 2

	svc := &stubTrailService{jobs: []domain.TrailGenerationJob{*j}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/trails/"+uuid.NewString()+"/jobs",
		uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "content provider failure", resp[0].LastError)
	assert.Equal(t, 2, resp[0].AttemptCount)
}
