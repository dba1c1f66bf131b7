package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/generation"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// defaultLessonTypes is the lesson sequence used per module when no blueprint
// matched and the skeleton comes straight from the curriculum hierarchy.
var defaultLessonTypes = []string{"vocabulary", "grammar", "practice"}

// ModulePlan is one planned module slot: the competency it teaches and the
// lesson types it will contain.
type ModulePlan struct {
	Competency  domain.Competency
	LessonTypes []string
}

// Assembler builds the trail's module/lesson tree and fills placeholder
// lessons with content, reusing hash-addressed content blocks wherever the
// same canonical payload already exists.
type Assembler struct {
	modules    store.ModuleStore
	lessons    store.LessonStore
	blocks     store.ContentBlockStore
	curriculum store.CurriculumStore
	generator  generation.Generator
	ranker     generation.SimilarityRanker
}

// NewAssembler creates an Assembler. The ranker may be nil; without one,
// assembly always generates fresh content and relies on hash dedup alone.
func NewAssembler(
	modules store.ModuleStore,
	lessons store.LessonStore,
	blocks store.ContentBlockStore,
	curriculum store.CurriculumStore,
	generator generation.Generator,
	ranker generation.SimilarityRanker,
) *Assembler {
	return &Assembler{
		modules:    modules,
		lessons:    lessons,
		blocks:     blocks,
		curriculum: curriculum,
		generator:  generator,
		ranker:     ranker,
	}
}

// PlanModules derives the ordered module plan for a trail, either from a
// matched blueprint's structure or, when blueprint is nil, from the
// curriculum's competency sequence for the trail's level.
func (a *Assembler) PlanModules(ctx context.Context, trail *domain.Trail, blueprint *domain.Blueprint) ([]ModulePlan, error) {
	if blueprint != nil {
		return a.planFromBlueprint(ctx, blueprint)
	}
	return a.planFromCurriculum(ctx, trail)
}

func (a *Assembler) planFromBlueprint(ctx context.Context, blueprint *domain.Blueprint) ([]ModulePlan, error) {
	structure, err := blueprint.DecodeStructure()
	if err != nil {
		return nil, fmt.Errorf("%w: blueprint %s structure: %v", generation.ErrMalformedPayload, blueprint.ID, err)
	}

	if len(structure.Modules) == 0 {
		return nil, fmt.Errorf("%w: blueprint %s has no modules", generation.ErrMalformedPayload, blueprint.ID)
	}

	plans := make([]ModulePlan, 0, len(structure.Modules))
	for _, m := range structure.Modules {
		competency, err := a.curriculum.GetCompetencyByCode(ctx, m.CompetencyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve competency %q: %w", m.CompetencyCode, err)
		}

		lessonTypes := m.LessonTypes
		if len(lessonTypes) == 0 {
			lessonTypes = defaultLessonTypes
		}
		plans = append(plans, ModulePlan{Competency: *competency, LessonTypes: lessonTypes})
	}

	return plans, nil
}

func (a *Assembler) planFromCurriculum(ctx context.Context, trail *domain.Trail) ([]ModulePlan, error) {
	level, err := a.curriculum.GetLevelByCode(ctx, trail.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve level %q: %w", trail.Level, err)
	}

	competencies, err := a.curriculum.ListCompetenciesForLevel(ctx, level.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competencies for level %q: %w", trail.Level, err)
	}

	if len(competencies) == 0 {
		return nil, fmt.Errorf("level %q has no competencies", trail.Level)
	}

	plans := make([]ModulePlan, 0, len(competencies))
	for _, c := range competencies {
		plans = append(plans, ModulePlan{Competency: c, LessonTypes: defaultLessonTypes})
	}

	return plans, nil
}

// CreateSkeleton persists a pending module plus placeholder lessons per plan
// entry and returns the created modules in position order.
func (a *Assembler) CreateSkeleton(ctx context.Context, trail *domain.Trail, plans []ModulePlan) ([]domain.TrailModule, error) {
	log := logger.FromContext(ctx)

	modules := make([]domain.TrailModule, 0, len(plans))
	for position, plan := range plans {
		module, err := domain.NewTrailModule(trail.ID, plan.Competency.ID, position)
		if err != nil {
			return nil, err
		}
		if err := a.modules.Create(ctx, module); err != nil {
			return nil, fmt.Errorf("failed to create module at position %d: %w", position, err)
		}

		for lessonPosition, lessonType := range plan.LessonTypes {
			lesson, err := domain.NewPlaceholderLesson(module.ID, lessonType, lessonPosition)
			if err != nil {
				return nil, err
			}
			if err := a.lessons.Create(ctx, lesson); err != nil {
				return nil, fmt.Errorf("failed to create lesson at position %d: %w", lessonPosition, err)
			}
		}

		modules = append(modules, *module)
	}

	log.Info("created trail skeleton",
		"trail_id", trail.ID,
		"modules", len(modules))
	return modules, nil
}

// FillModule fills every placeholder lesson in the module and flips the module
// ready once none remain. Returns the provider tokens consumed. Already
// generated lessons are skipped, so retried jobs resume instead of
// regenerating finished work.
func (a *Assembler) FillModule(ctx context.Context, trail *domain.Trail, module *domain.TrailModule) (int, error) {
	log := logger.FromContext(ctx)

	level, err := a.curriculum.GetLevelByCode(ctx, trail.Level)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve level %q: %w", trail.Level, err)
	}

	descriptors, err := a.curriculum.ListDescriptors(ctx, level.ID, module.CompetencyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list descriptors: %w", err)
	}
	if len(descriptors) == 0 {
		return 0, fmt.Errorf("no descriptors for level %q competency %s", trail.Level, module.CompetencyID)
	}

	lessons, err := a.lessons.ListByModule(ctx, module.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list module lessons: %w", err)
	}

	tokens := 0
	for i := range lessons {
		lesson := &lessons[i]
		if !lesson.Placeholder {
			continue
		}

		descriptor := descriptors[lesson.Position%len(descriptors)]
		req := generation.LessonRequest{
			Descriptor: descriptor,
			Language:   trail.Language,
			LessonType: lesson.Type,
		}

		block, used, err := a.resolveContent(ctx, req)
		if err != nil {
			return tokens, err
		}
		tokens += used

		lesson.Fill(block.Payload)
		if err := a.lessons.Update(ctx, lesson); err != nil {
			return tokens, fmt.Errorf("failed to save filled lesson: %w", err)
		}

		if err := a.blocks.IncrementUsage(ctx, block.ID); err != nil {
			return tokens, fmt.Errorf("failed to increment content usage: %w", err)
		}
	}

	if next := domain.ModuleStatusFor(lessons); next != module.Status {
		module.Status = next
		module.UpdatedAt = time.Now().UTC()
		if err := a.modules.Update(ctx, module); err != nil {
			return tokens, fmt.Errorf("failed to save module status: %w", err)
		}
		log.Info("module filled",
			"module_id", module.ID,
			"trail_id", trail.ID,
			"position", module.Position,
			"status", next)
	}

	return tokens, nil
}

// resolveContent produces the content block for a lesson request: a ranked
// approved block when similarity reuse applies, otherwise a freshly generated
// payload deduplicated through the hash-addressed cache.
func (a *Assembler) resolveContent(ctx context.Context, req generation.LessonRequest) (*domain.ContentBlock, int, error) {
	log := logger.FromContext(ctx)

	if a.ranker != nil {
		block, err := a.reuseRankedBlock(ctx, req)
		if err != nil {
			// Similarity reuse is an optimization; its provider failing must
			// not fail the job.
			log.Warn("similarity ranking unavailable, generating fresh",
				"descriptor_id", req.Descriptor.ID,
				"error", err)
		} else if block != nil {
			return block, 0, nil
		}
	}

	result, err := a.generator.GenerateLesson(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	block, err := a.findOrCreateBlock(ctx, req, result.Payload)
	if err != nil {
		return nil, result.TokensUsed, err
	}

	return block, result.TokensUsed, nil
}

func (a *Assembler) reuseRankedBlock(ctx context.Context, req generation.LessonRequest) (*domain.ContentBlock, error) {
	candidates, err := a.blocks.ListApprovedByDescriptor(ctx, req.Descriptor.ID, req.Language, req.LessonType)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked, err := a.ranker.RankCandidates(ctx, req, candidates)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	return &ranked[0], nil
}

// findOrCreateBlock resolves a generated payload to its single cache row.
// A concurrent duplicate generation loses the insert race, discards its copy,
// and attaches to the winner's row.
func (a *Assembler) findOrCreateBlock(ctx context.Context, req generation.LessonRequest, payload json.RawMessage) (*domain.ContentBlock, error) {
	block, err := domain.NewContentBlock(req.Descriptor.ID, req.Language, req.LessonType, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrMalformedPayload, err)
	}

	existing, err := a.blocks.GetByHash(ctx, block.ContentHash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrContentBlockNotFound) {
		return nil, fmt.Errorf("failed to look up content block: %w", err)
	}

	err = a.blocks.Create(ctx, block)
	if err == nil {
		return block, nil
	}
	if !errors.Is(err, store.ErrContentHashExists) {
		return nil, fmt.Errorf("failed to create content block: %w", err)
	}

	existing, err = a.blocks.GetByHash(ctx, block.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch winning content block: %w", err)
	}
	return existing, nil
}
