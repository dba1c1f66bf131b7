package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/store"
)

// In-memory fakes for the stores the trail service touches.

type mockTrailStore struct {
	trails map[uuid.UUID]domain.Trail
}

func newMockTrailStore() *mockTrailStore {
	return &mockTrailStore{trails: make(map[uuid.UUID]domain.Trail)}
}

func (s *mockTrailStore) Create(_ context.Context, trail *domain.Trail) error {
	// Mirrors the partial unique index: one non-archived trail per
	// (student, language).
	if !trail.IsArchived() {
		for _, existing := range s.trails {
			if existing.StudentID == trail.StudentID && existing.Language == trail.Language && !existing.IsArchived() {
				return store.ErrDuplicate
			}
		}
	}
	s.trails[trail.ID] = *trail
	return nil
}

func (s *mockTrailStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Trail, error) {
	trail, ok := s.trails[id]
	if !ok {
		return nil, store.ErrTrailNotFound
	}
	return &trail, nil
}

func (s *mockTrailStore) GetActive(_ context.Context, studentID uuid.UUID, language string) (*domain.Trail, error) {
	for _, trail := range s.trails {
		if trail.StudentID == studentID && trail.Language == language && !trail.IsArchived() {
			t := trail
			return &t, nil
		}
	}
	return nil, store.ErrTrailNotFound
}

func (s *mockTrailStore) ListByStudent(_ context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error) {
	var out []*domain.Trail
	for _, trail := range s.trails {
		if trail.StudentID == studentID && (language == "" || trail.Language == language) {
			t := trail
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *mockTrailStore) Update(_ context.Context, trail *domain.Trail) error {
	if _, ok := s.trails[trail.ID]; !ok {
		return store.ErrTrailNotFound
	}
	s.trails[trail.ID] = *trail
	return nil
}

func (s *mockTrailStore) WithTx(_ *sql.Tx) store.TrailStore { return s }

type mockModuleStore struct {
	modules map[uuid.UUID]domain.TrailModule
}

func newMockModuleStore() *mockModuleStore {
	return &mockModuleStore{modules: make(map[uuid.UUID]domain.TrailModule)}
}

func (s *mockModuleStore) Create(_ context.Context, module *domain.TrailModule) error {
	s.modules[module.ID] = *module
	return nil
}

func (s *mockModuleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TrailModule, error) {
	module, ok := s.modules[id]
	if !ok {
		return nil, store.ErrModuleNotFound
	}
	return &module, nil
}

func (s *mockModuleStore) ListByTrail(_ context.Context, trailID uuid.UUID) ([]domain.TrailModule, error) {
	var out []domain.TrailModule
	for _, module := range s.modules {
		if module.TrailID == trailID {
			out = append(out, module)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *mockModuleStore) Update(_ context.Context, module *domain.TrailModule) error {
	if _, ok := s.modules[module.ID]; !ok {
		return store.ErrModuleNotFound
	}
	s.modules[module.ID] = *module
	return nil
}

func (s *mockModuleStore) WithTx(_ *sql.Tx) store.ModuleStore { return s }

type mockLessonStore struct {
	lessons map[uuid.UUID]domain.Lesson
	modules *mockModuleStore
}

func newMockLessonStore(modules *mockModuleStore) *mockLessonStore {
	return &mockLessonStore{lessons: make(map[uuid.UUID]domain.Lesson), modules: modules}
}

func (s *mockLessonStore) Create(_ context.Context, lesson *domain.Lesson) error {
	s.lessons[lesson.ID] = *lesson
	return nil
}

func (s *mockLessonStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Lesson, error) {
	lesson, ok := s.lessons[id]
	if !ok {
		return nil, store.ErrLessonNotFound
	}
	return &lesson, nil
}

func (s *mockLessonStore) ListByModule(_ context.Context, moduleID uuid.UUID) ([]domain.Lesson, error) {
	var out []domain.Lesson
	for _, lesson := range s.lessons {
		if lesson.ModuleID == moduleID {
			out = append(out, lesson)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *mockLessonStore) ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.Lesson, error) {
	modules, _ := s.modules.ListByTrail(ctx, trailID)
	var out []domain.Lesson
	for _, module := range modules {
		lessons, _ := s.ListByModule(ctx, module.ID)
		out = append(out, lessons...)
	}
	return out, nil
}

func (s *mockLessonStore) Update(_ context.Context, lesson *domain.Lesson) error {
	if _, ok := s.lessons[lesson.ID]; !ok {
		return store.ErrLessonNotFound
	}
	s.lessons[lesson.ID] = *lesson
	return nil
}

func (s *mockLessonStore) WithTx(_ *sql.Tx) store.LessonStore { return s }

type mockJobStore struct {
	jobs map[uuid.UUID]domain.TrailGenerationJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[uuid.UUID]domain.TrailGenerationJob)}
}

func (s *mockJobStore) Create(_ context.Context, j *domain.TrailGenerationJob) error {
	for _, existing := range s.jobs {
		if existing.TrailID == j.TrailID && existing.IsActive() {
			return store.ErrActiveJobExists
		}
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *mockJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TrailGenerationJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &j, nil
}

func (s *mockJobStore) GetActiveByTrail(_ context.Context, trailID uuid.UUID) (*domain.TrailGenerationJob, error) {
	for _, j := range s.jobs {
		if j.TrailID == trailID && j.IsActive() {
			out := j
			return &out, nil
		}
	}
	return nil, store.ErrJobNotFound
}

func (s *mockJobStore) ListByTrail(_ context.Context, trailID uuid.UUID) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.TrailID == trailID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *mockJobStore) Update(_ context.Context, j *domain.TrailGenerationJob) error {
	if _, ok := s.jobs[j.ID]; !ok {
		return store.ErrJobNotFound
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *mockJobStore) CancelActiveByTrail(_ context.Context, trailID uuid.UUID) (int64, error) {
	var cancelled int64
	for id, j := range s.jobs {
		if j.TrailID == trailID && !j.IsTerminal() {
			j.Status = domain.JobStatusCancelled
			j.NextRetryAt = nil
			s.jobs[id] = j
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *mockJobStore) DueForRetry(_ context.Context, now time.Time) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusQueued && j.NextRetryAt != nil && !j.NextRetryAt.After(now) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *mockJobStore) StaleProcessing(_ context.Context, olderThan time.Duration) ([]domain.TrailGenerationJob, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *mockJobStore) ListQueued(_ context.Context) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusQueued && j.NextRetryAt == nil {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *mockJobStore) WithTx(_ *sql.Tx) store.JobStore { return s }

type mockProgressStore struct {
	rollups map[uuid.UUID]domain.TrailProgress
}

func newMockProgressStore() *mockProgressStore {
	return &mockProgressStore{rollups: make(map[uuid.UUID]domain.TrailProgress)}
}

func (s *mockProgressStore) Upsert(_ context.Context, progress *domain.TrailProgress) error {
	s.rollups[progress.TrailID] = *progress
	return nil
}

func (s *mockProgressStore) GetByTrail(_ context.Context, trailID uuid.UUID) (*domain.TrailProgress, error) {
	progress, ok := s.rollups[trailID]
	if !ok {
		return nil, store.ErrProgressNotFound
	}
	return &progress, nil
}

func (s *mockProgressStore) WithTx(_ *sql.Tx) store.ProgressStore { return s }

type mockCurriculumStore struct {
	levels map[string]domain.Level
}

func newMockCurriculumStore(levelCodes ...string) *mockCurriculumStore {
	s := &mockCurriculumStore{levels: make(map[string]domain.Level)}
	for i, code := range levelCodes {
		s.levels[code] = domain.Level{ID: uuid.New(), Code: code, Name: code, Position: i}
	}
	return s
}

func (s *mockCurriculumStore) GetLevelByCode(_ context.Context, code string) (*domain.Level, error) {
	level, ok := s.levels[code]
	if !ok {
		return nil, store.ErrLevelNotFound
	}
	return &level, nil
}

func (s *mockCurriculumStore) GetCompetencyByCode(_ context.Context, _ string) (*domain.Competency, error) {
	return nil, store.ErrCompetencyNotFound
}

func (s *mockCurriculumStore) ListCompetenciesForLevel(_ context.Context, _ uuid.UUID) ([]domain.Competency, error) {
	return nil, nil
}

func (s *mockCurriculumStore) ListDescriptors(_ context.Context, _, _ uuid.UUID) ([]domain.Descriptor, error) {
	return nil, nil
}

type mockPublisher struct {
	published []domain.TrailGenerationJob
	err       error
}

func (p *mockPublisher) PublishGeneration(_ context.Context, j *domain.TrailGenerationJob) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, *j)
	return nil
}
