package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/generation"
	"github.com/lingotrail/trail-api/internal/platform/rabbitmq"
	"github.com/lingotrail/trail-api/internal/store"
)

// In-memory store fakes. Values are copied on the way in and out so tests
// cannot alias the fake's internal state.

type fakeTrailStore struct {
	trails map[uuid.UUID]domain.Trail
}

func newFakeTrailStore() *fakeTrailStore {
	return &fakeTrailStore{trails: make(map[uuid.UUID]domain.Trail)}
}

func (s *fakeTrailStore) Create(_ context.Context, trail *domain.Trail) error {
	s.trails[trail.ID] = *trail
	return nil
}

func (s *fakeTrailStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Trail, error) {
	trail, ok := s.trails[id]
	if !ok {
		return nil, store.ErrTrailNotFound
	}
	return &trail, nil
}

func (s *fakeTrailStore) GetActive(_ context.Context, studentID uuid.UUID, language string) (*domain.Trail, error) {
	for _, trail := range s.trails {
		if trail.StudentID == studentID && trail.Language == language && !trail.IsArchived() {
			t := trail
			return &t, nil
		}
	}
	return nil, store.ErrTrailNotFound
}

func (s *fakeTrailStore) ListByStudent(_ context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error) {
	var out []*domain.Trail
	for _, trail := range s.trails {
		if trail.StudentID == studentID && (language == "" || trail.Language == language) {
			t := trail
			out = append(out, &t)
		}
	}
	return out, nil
}

func (s *fakeTrailStore) Update(_ context.Context, trail *domain.Trail) error {
	if _, ok := s.trails[trail.ID]; !ok {
		return store.ErrTrailNotFound
	}
	s.trails[trail.ID] = *trail
	return nil
}

func (s *fakeTrailStore) WithTx(_ *sql.Tx) store.TrailStore { return s }

type fakeModuleStore struct {
	modules map[uuid.UUID]domain.TrailModule
}

func newFakeModuleStore() *fakeModuleStore {
	return &fakeModuleStore{modules: make(map[uuid.UUID]domain.TrailModule)}
}

func (s *fakeModuleStore) Create(_ context.Context, module *domain.TrailModule) error {
	s.modules[module.ID] = *module
	return nil
}

func (s *fakeModuleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TrailModule, error) {
	module, ok := s.modules[id]
	if !ok {
		return nil, store.ErrModuleNotFound
	}
	return &module, nil
}

func (s *fakeModuleStore) ListByTrail(_ context.Context, trailID uuid.UUID) ([]domain.TrailModule, error) {
	var out []domain.TrailModule
	for _, module := range s.modules {
		if module.TrailID == trailID {
			out = append(out, module)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *fakeModuleStore) Update(_ context.Context, module *domain.TrailModule) error {
	if _, ok := s.modules[module.ID]; !ok {
		return store.ErrModuleNotFound
	}
	s.modules[module.ID] = *module
	return nil
}

func (s *fakeModuleStore) WithTx(_ *sql.Tx) store.ModuleStore { return s }

type fakeLessonStore struct {
	lessons map[uuid.UUID]domain.Lesson
	modules *fakeModuleStore
}

func newFakeLessonStore(modules *fakeModuleStore) *fakeLessonStore {
	return &fakeLessonStore{lessons: make(map[uuid.UUID]domain.Lesson), modules: modules}
}

func (s *fakeLessonStore) Create(_ context.Context, lesson *domain.Lesson) error {
	s.lessons[lesson.ID] = *lesson
	return nil
}

func (s *fakeLessonStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Lesson, error) {
	lesson, ok := s.lessons[id]
	if !ok {
		return nil, store.ErrLessonNotFound
	}
	return &lesson, nil
}

func (s *fakeLessonStore) ListByModule(_ context.Context, moduleID uuid.UUID) ([]domain.Lesson, error) {
	var out []domain.Lesson
	for _, lesson := range s.lessons {
		if lesson.ModuleID == moduleID {
			out = append(out, lesson)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *fakeLessonStore) ListByTrail(ctx context.Context, trailID uuid.UUID) ([]domain.Lesson, error) {
	modules, _ := s.modules.ListByTrail(ctx, trailID)
	var out []domain.Lesson
	for _, module := range modules {
		lessons, _ := s.ListByModule(ctx, module.ID)
		out = append(out, lessons...)
	}
	return out, nil
}

func (s *fakeLessonStore) Update(_ context.Context, lesson *domain.Lesson) error {
	if _, ok := s.lessons[lesson.ID]; !ok {
		return store.ErrLessonNotFound
	}
	s.lessons[lesson.ID] = *lesson
	return nil
}

func (s *fakeLessonStore) WithTx(_ *sql.Tx) store.LessonStore { return s }

type fakeJobStore struct {
	jobs map[uuid.UUID]domain.TrailGenerationJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]domain.TrailGenerationJob)}
}

func (s *fakeJobStore) Create(_ context.Context, j *domain.TrailGenerationJob) error {
	for _, existing := range s.jobs {
		if existing.TrailID == j.TrailID && existing.IsActive() {
			return store.ErrActiveJobExists
		}
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TrailGenerationJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &j, nil
}

func (s *fakeJobStore) GetActiveByTrail(_ context.Context, trailID uuid.UUID) (*domain.TrailGenerationJob, error) {
	for _, j := range s.jobs {
		if j.TrailID == trailID && j.IsActive() {
			out := j
			return &out, nil
		}
	}
	return nil, store.ErrJobNotFound
}

func (s *fakeJobStore) ListByTrail(_ context.Context, trailID uuid.UUID) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.TrailID == trailID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeJobStore) Update(_ context.Context, j *domain.TrailGenerationJob) error {
	if _, ok := s.jobs[j.ID]; !ok {
		return store.ErrJobNotFound
	}
	s.jobs[j.ID] = *j
	return nil
}

func (s *fakeJobStore) CancelActiveByTrail(_ context.Context, trailID uuid.UUID) (int64, error) {
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

func (s *fakeJobStore) DueForRetry(_ context.Context, now time.Time) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusQueued && j.NextRetryAt != nil && !j.NextRetryAt.After(now) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) StaleProcessing(_ context.Context, olderThan time.Duration) ([]domain.TrailGenerationJob, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) ListQueued(_ context.Context) ([]domain.TrailGenerationJob, error) {
	var out []domain.TrailGenerationJob
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusQueued && j.NextRetryAt == nil {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeJobStore) WithTx(_ *sql.Tx) store.JobStore { return s }

type fakeContentBlockStore struct {
	blocks map[string]domain.ContentBlock // keyed by content hash
}

func newFakeContentBlockStore() *fakeContentBlockStore {
	return &fakeContentBlockStore{blocks: make(map[string]domain.ContentBlock)}
}

func (s *fakeContentBlockStore) GetByHash(_ context.Context, contentHash string) (*domain.ContentBlock, error) {
	block, ok := s.blocks[contentHash]
	if !ok {
		return nil, store.ErrContentBlockNotFound
	}
	return &block, nil
}

func (s *fakeContentBlockStore) ListApprovedByDescriptor(_ context.Context, descriptorID uuid.UUID, language, blockType string) ([]domain.ContentBlock, error) {
	var out []domain.ContentBlock
	for _, block := range s.blocks {
		if block.DescriptorID == descriptorID && block.Language == language && block.Type == blockType && block.Approved {
			out = append(out, block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	return out, nil
}

func (s *fakeContentBlockStore) Create(_ context.Context, block *domain.ContentBlock) error {
	if _, ok := s.blocks[block.ContentHash]; ok {
		return store.ErrContentHashExists
	}
	s.blocks[block.ContentHash] = *block
	return nil
}

func (s *fakeContentBlockStore) IncrementUsage(_ context.Context, id uuid.UUID) error {
	for hash, block := range s.blocks {
		if block.ID == id {
			block.UsageCount++
			s.blocks[hash] = block
			return nil
		}
	}
	return store.ErrContentBlockNotFound
}

func (s *fakeContentBlockStore) WithTx(_ *sql.Tx) store.ContentBlockStore { return s }

type fakeBlueprintStore struct {
	blueprints      []domain.Blueprint
	usageIncrements map[uuid.UUID]int
}

func newFakeBlueprintStore(blueprints ...domain.Blueprint) *fakeBlueprintStore {
	return &fakeBlueprintStore{
		blueprints:      blueprints,
		usageIncrements: make(map[uuid.UUID]int),
	}
}

func (s *fakeBlueprintStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Blueprint, error) {
	for _, blueprint := range s.blueprints {
		if blueprint.ID == id {
			b := blueprint
			return &b, nil
		}
	}
	return nil, store.ErrBlueprintNotFound
}

func (s *fakeBlueprintStore) ListApproved(_ context.Context, language, level string) ([]domain.Blueprint, error) {
	var out []domain.Blueprint
	for _, blueprint := range s.blueprints {
		if blueprint.Language == language && blueprint.Level == level && blueprint.Approved {
			out = append(out, blueprint)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	return out, nil
}

func (s *fakeBlueprintStore) IncrementUsage(_ context.Context, id uuid.UUID) error {
	s.usageIncrements[id]++
	return nil
}

func (s *fakeBlueprintStore) WithTx(_ *sql.Tx) store.BlueprintStore { return s }

// fakeCurriculum is a minimal in-memory curriculum: one level with a fixed
// competency sequence and one descriptor per competency.
type fakeCurriculum struct {
	level        domain.Level
	competencies []domain.Competency
	descriptors  map[uuid.UUID][]domain.Descriptor // by competency ID
}

func newFakeCurriculum(levelCode string, competencyCodes ...string) *fakeCurriculum {
	c := &fakeCurriculum{
		level:       domain.Level{ID: uuid.New(), Code: levelCode, Name: levelCode, Position: 0},
		descriptors: make(map[uuid.UUID][]domain.Descriptor),
	}
	for i, code := range competencyCodes {
		competency := domain.Competency{ID: uuid.New(), Code: code, Name: code}
		c.competencies = append(c.competencies, competency)
		c.descriptors[competency.ID] = []domain.Descriptor{{
			ID:           uuid.New(),
			LevelID:      c.level.ID,
			CompetencyID: competency.ID,
			Code:         fmt.Sprintf("%s.%s.1", levelCode, code),
			Text:         fmt.Sprintf("can use %s at %s", code, levelCode),
			Position:     i,
		}}
	}
	return c
}

func (c *fakeCurriculum) GetLevelByCode(_ context.Context, code string) (*domain.Level, error) {
	if code != c.level.Code {
		return nil, store.ErrLevelNotFound
	}
	level := c.level
	return &level, nil
}

func (c *fakeCurriculum) GetCompetencyByCode(_ context.Context, code string) (*domain.Competency, error) {
	for _, competency := range c.competencies {
		if competency.Code == code {
			out := competency
			return &out, nil
		}
	}
	return nil, store.ErrCompetencyNotFound
}

func (c *fakeCurriculum) ListCompetenciesForLevel(_ context.Context, levelID uuid.UUID) ([]domain.Competency, error) {
	if levelID != c.level.ID {
		return nil, nil
	}
	return append([]domain.Competency(nil), c.competencies...), nil
}

func (c *fakeCurriculum) ListDescriptors(_ context.Context, levelID, competencyID uuid.UUID) ([]domain.Descriptor, error) {
	if levelID != c.level.ID {
		return nil, nil
	}
	return append([]domain.Descriptor(nil), c.descriptors[competencyID]...), nil
}

// fakeGenerator produces a deterministic payload per descriptor/type unless a
// failure is injected for a competency code.
type fakeGenerator struct {
	calls   int
	failFor map[string]error // by descriptor code
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{failFor: make(map[string]error)}
}

func (g *fakeGenerator) GenerateLesson(_ context.Context, req generation.LessonRequest) (*generation.Result, error) {
	g.calls++
	if err, ok := g.failFor[req.Descriptor.Code]; ok {
		return nil, err
	}
	payload, _ := json.Marshal(map[string]string{
		"descriptor": req.Descriptor.Code,
		"type":       req.LessonType,
		"language":   req.Language,
	})
	return &generation.Result{Payload: payload, TokensUsed: 10}, nil
}

type fakeNotifier struct {
	published []rabbitmq.NotificationMessage
}

func (n *fakeNotifier) PublishNotification(_ context.Context, msg rabbitmq.NotificationMessage) error {
	n.published = append(n.published, msg)
	return nil
}

type fakeGenerationPublisher struct {
	published []uuid.UUID
}

func (p *fakeGenerationPublisher) PublishGeneration(_ context.Context, j *domain.TrailGenerationJob) error {
	p.published = append(p.published, j.ID)
	return nil
}
