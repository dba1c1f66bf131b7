package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/job"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// TrailService implements the trail lifecycle operations behind the API:
// generation requests, reads, refresh, archive, lesson completion, and
// progress. It never blocks on generation; publishing is fire-and-forget and
// clients poll the trail resource.
type TrailService struct {
	trails     store.TrailStore
	modules    store.ModuleStore
	lessons    store.LessonStore
	jobs       store.JobStore
	progress   store.ProgressStore
	curriculum store.CurriculumStore
	publisher  job.GenerationPublisher

	// runTx executes fn atomically; tests replace it to run without a database.
	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewTrailService creates a TrailService over the given stores and database.
func NewTrailService(
	db *sql.DB,
	trails store.TrailStore,
	modules store.ModuleStore,
	lessons store.LessonStore,
	jobs store.JobStore,
	progress store.ProgressStore,
	curriculum store.CurriculumStore,
	publisher job.GenerationPublisher,
) *TrailService {
	return &TrailService{
		trails:     trails,
		modules:    modules,
		lessons:    lessons,
		jobs:       jobs,
		progress:   progress,
		curriculum: curriculum,
		publisher:  publisher,
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// Generate requests trail generation for a (student, language, level).
// Behavior depends on the student's existing trail for the language:
//   - none: a new GENERATING trail and a full_generation job are created.
//   - GENERATING or PARTIAL: the request is an idempotent accept; the
//     existing trail is returned; if its job died terminally, a gap_fill job
//     finishing the pending modules is enqueued.
//   - READY: ErrActiveTrailExists; the client must refresh instead.
func (s *TrailService) Generate(ctx context.Context, studentID uuid.UUID, language, level string) (*domain.Trail, error) {
	log := logger.FromContext(ctx)

	if _, err := s.curriculum.GetLevelByCode(ctx, level); err != nil {
		return nil, NewTrailServiceError("generate", "unknown level", err)
	}

	existing, err := s.trails.GetActive(ctx, studentID, language)
	if err != nil && !errors.Is(err, store.ErrTrailNotFound) {
		return nil, NewTrailServiceError("generate", "failed to check active trail", err)
	}

	if existing != nil {
		if existing.Status == domain.TrailStatusReady {
			return nil, ErrActiveTrailExists
		}
		return s.resumeExisting(ctx, existing)
	}

	trail, err := domain.NewTrail(studentID, language, level, "")
	if err != nil {
		return nil, NewTrailServiceError("generate", "invalid trail", err)
	}

	generationJob, err := domain.NewTrailGenerationJob(trail.ID, studentID, domain.JobTypeFullGeneration, 0, nil)
	if err != nil {
		return nil, NewTrailServiceError("generate", "invalid job", err)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.trails.WithTx(tx).Create(ctx, trail); err != nil {
			return err
		}
		return s.jobs.WithTx(tx).Create(ctx, generationJob)
	})
	if err != nil {
		// A concurrent request won the active-trail or active-job race.
		if store.IsDuplicateError(err) {
			return nil, ErrGenerationInProgress
		}
		return nil, NewTrailServiceError("generate", "failed to create trail", err)
	}

	s.publishJob(ctx, generationJob)

	log.Info("trail generation requested",
		"trail_id", trail.ID,
		"student_id", studentID,
		"language", language,
		"level", level)
	return trail, nil
}

// resumeExisting handles a generate request while generation is underway or
// stalled. With a live job the request is a no-op accept; without one, a
// gap_fill job picks up the trail's pending modules.
func (s *TrailService) resumeExisting(ctx context.Context, trail *domain.Trail) (*domain.Trail, error) {
	log := logger.FromContext(ctx)

	_, err := s.jobs.GetActiveByTrail(ctx, trail.ID)
	if err == nil {
		return trail, nil
	}
	if !errors.Is(err, store.ErrJobNotFound) {
		return nil, NewTrailServiceError("generate", "failed to check active job", err)
	}

	gapJob, err := domain.NewTrailGenerationJob(trail.ID, trail.StudentID, domain.JobTypeGapFill, 0, nil)
	if err != nil {
		return nil, NewTrailServiceError("generate", "invalid job", err)
	}

	if err := s.jobs.Create(ctx, gapJob); err != nil {
		if errors.Is(err, store.ErrActiveJobExists) {
			// Another request created one in between; the accept stands.
			return trail, nil
		}
		return nil, NewTrailServiceError("generate", "failed to enqueue gap fill", err)
	}

	s.publishJob(ctx, gapJob)

	log.Info("resuming stalled trail generation",
		"trail_id", trail.ID,
		"job_id", gapJob.ID)
	return trail, nil
}

// Get retrieves a trail owned by the student, archived or not. Trails are
// returned even mid-generation so clients can render partial content.
func (s *TrailService) Get(ctx context.Context, studentID, trailID uuid.UUID) (*domain.Trail, error) {
	return s.ownedTrail(ctx, studentID, trailID)
}

// GetActive retrieves the student's non-archived trail for a language.
func (s *TrailService) GetActive(ctx context.Context, studentID uuid.UUID, language string) (*domain.Trail, error) {
	return s.trails.GetActive(ctx, studentID, language)
}

// List retrieves the student's trails, optionally filtered by language.
func (s *TrailService) List(ctx context.Context, studentID uuid.UUID, language string) ([]*domain.Trail, error) {
	return s.trails.ListByStudent(ctx, studentID, language)
}

// Refresh replaces a trail with a newly generated one. The replacement points
// back at the old trail, the old trail is archived and its jobs cancelled in
// the same transaction, and a refresh job is enqueued for the replacement.
func (s *TrailService) Refresh(ctx context.Context, studentID, trailID uuid.UUID, reason string) (*domain.Trail, error) {
	log := logger.FromContext(ctx)

	previous, err := s.ownedTrail(ctx, studentID, trailID)
	if err != nil {
		return nil, err
	}
	if previous.IsArchived() {
		return nil, ErrTrailArchived
	}

	replacement, err := domain.NewRefreshTrail(previous, reason)
	if err != nil {
		return nil, NewTrailServiceError("refresh", "invalid replacement trail", err)
	}

	refreshJob, err := domain.NewTrailGenerationJob(replacement.ID, studentID, domain.JobTypeRefresh, 0, nil)
	if err != nil {
		return nil, NewTrailServiceError("refresh", "invalid job", err)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		jobs := s.jobs.WithTx(tx)
		trails := s.trails.WithTx(tx)

		if _, err := jobs.CancelActiveByTrail(ctx, previous.ID); err != nil {
			return err
		}

		previous.Archive()
		if err := trails.Update(ctx, previous); err != nil {
			return err
		}

		if err := trails.Create(ctx, replacement); err != nil {
			return err
		}
		return jobs.Create(ctx, refreshJob)
	})
	if err != nil {
		return nil, NewTrailServiceError("refresh", "failed to create replacement trail", err)
	}

	s.publishJob(ctx, refreshJob)

	log.Info("trail refresh requested",
		"trail_id", replacement.ID,
		"previous_trail_id", previous.ID,
		"reason", reason)
	return replacement, nil
}

// Archive archives a trail and cancels its active jobs. Archiving an already
// archived trail succeeds and keeps the original archive timestamp.
func (s *TrailService) Archive(ctx context.Context, studentID, trailID uuid.UUID) (*domain.Trail, error) {
	log := logger.FromContext(ctx)

	trail, err := s.ownedTrail(ctx, studentID, trailID)
	if err != nil {
		return nil, err
	}
	if trail.IsArchived() {
		return trail, nil
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.jobs.WithTx(tx).CancelActiveByTrail(ctx, trail.ID); err != nil {
			return err
		}
		trail.Archive()
		return s.trails.WithTx(tx).Update(ctx, trail)
	})
	if err != nil {
		return nil, NewTrailServiceError("archive", "failed to archive trail", err)
	}

	log.Info("trail archived", "trail_id", trail.ID, "student_id", studentID)
	return trail, nil
}

// Cancel marks all active generation jobs for a trail cancelled and reports
// how many were affected. Best-effort: a message already delivered to a
// worker is not recalled; the worker notices the cancellation on its next
// status re-check.
func (s *TrailService) Cancel(ctx context.Context, studentID, trailID uuid.UUID) (int64, error) {
	if _, err := s.ownedTrail(ctx, studentID, trailID); err != nil {
		return 0, err
	}
	return s.jobs.CancelActiveByTrail(ctx, trailID)
}

// ListModules retrieves a trail's modules in position order.
func (s *TrailService) ListModules(ctx context.Context, studentID, trailID uuid.UUID) ([]domain.TrailModule, error) {
	if _, err := s.ownedTrail(ctx, studentID, trailID); err != nil {
		return nil, err
	}
	return s.modules.ListByTrail(ctx, trailID)
}

// ListLessons retrieves a module's lessons in position order. The module must
// belong to the given trail.
func (s *TrailService) ListLessons(ctx context.Context, studentID, trailID, moduleID uuid.UUID) ([]domain.Lesson, error) {
	if _, err := s.ownedTrail(ctx, studentID, trailID); err != nil {
		return nil, err
	}

	module, err := s.modules.GetByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module.TrailID != trailID {
		return nil, store.ErrModuleNotFound
	}

	return s.lessons.ListByModule(ctx, moduleID)
}

// ListJobs retrieves a trail's generation jobs, newest first, including
// failed attempts with their recorded errors.
func (s *TrailService) ListJobs(ctx context.Context, studentID, trailID uuid.UUID) ([]domain.TrailGenerationJob, error) {
	if _, err := s.ownedTrail(ctx, studentID, trailID); err != nil {
		return nil, err
	}
	return s.jobs.ListByTrail(ctx, trailID)
}

// CompleteLesson records a lesson completion and recomputes the trail's
// progress rollup. Completion is last-write-wins: repeating the call
// overwrites the previous score and time.
func (s *TrailService) CompleteLesson(ctx context.Context, studentID, lessonID uuid.UUID, score float64, timeSpentSeconds int) (*domain.Lesson, *domain.TrailProgress, error) {
	log := logger.FromContext(ctx)

	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, nil, err
	}

	module, err := s.modules.GetByID(ctx, lesson.ModuleID)
	if err != nil {
		return nil, nil, err
	}

	trail, err := s.ownedTrail(ctx, studentID, module.TrailID)
	if err != nil {
		return nil, nil, err
	}

	if err := lesson.Complete(score, timeSpentSeconds); err != nil {
		return nil, nil, NewTrailServiceError("complete_lesson", "invalid completion", err)
	}

	var progress domain.TrailProgress
	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		lessons := s.lessons.WithTx(tx)

		if err := lessons.Update(ctx, lesson); err != nil {
			return err
		}

		all, err := lessons.ListByTrail(ctx, trail.ID)
		if err != nil {
			return err
		}

		progress = domain.ProgressFor(trail.ID, all)
		return s.progress.WithTx(tx).Upsert(ctx, &progress)
	})
	if err != nil {
		return nil, nil, NewTrailServiceError("complete_lesson", "failed to save completion", err)
	}

	log.Info("lesson completed",
		"lesson_id", lesson.ID,
		"trail_id", trail.ID,
		"score", score)
	return lesson, &progress, nil
}

// GetProgress retrieves the trail's progress rollup, computing and caching it
// when no rollup exists yet.
func (s *TrailService) GetProgress(ctx context.Context, studentID, trailID uuid.UUID) (*domain.TrailProgress, error) {
	trail, err := s.ownedTrail(ctx, studentID, trailID)
	if err != nil {
		return nil, err
	}

	progress, err := s.progress.GetByTrail(ctx, trail.ID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, store.ErrProgressNotFound) {
		return nil, NewTrailServiceError("get_progress", "failed to load progress", err)
	}

	lessons, err := s.lessons.ListByTrail(ctx, trail.ID)
	if err != nil {
		return nil, NewTrailServiceError("get_progress", "failed to list lessons", err)
	}

	computed := domain.ProgressFor(trail.ID, lessons)
	if err := s.progress.Upsert(ctx, &computed); err != nil {
		return nil, NewTrailServiceError("get_progress", "failed to cache progress", err)
	}
	return &computed, nil
}

// ownedTrail loads a trail and verifies the requesting student owns it.
func (s *TrailService) ownedTrail(ctx context.Context, studentID, trailID uuid.UUID) (*domain.Trail, error) {
	trail, err := s.trails.GetByID(ctx, trailID)
	if err != nil {
		return nil, err
	}
	if trail.StudentID != studentID {
		return nil, ErrNotOwned
	}
	return trail, nil
}

// publishJob puts a job on the generation queue. Publish failures are logged,
// not returned: the job row is committed, and worker recovery republishes
// queued jobs whose messages never made it to the broker.
func (s *TrailService) publishJob(ctx context.Context, j *domain.TrailGenerationJob) {
	if err := s.publisher.PublishGeneration(ctx, j); err != nil {
		logger.FromContext(ctx).Error("failed to publish generation job",
			"job_id", j.ID,
			"trail_id", j.TrailID,
			"error", err)
	}
}
