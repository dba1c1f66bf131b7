package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/generation"
	"github.com/lingotrail/trail-api/internal/job"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/platform/rabbitmq"
	"github.com/lingotrail/trail-api/internal/store"
)

// errJobCancelled aborts processing when a cancellation lands mid-flight.
// Cancellation is database-only, so workers must re-check the job row around
// expensive steps; the in-flight broker message is never recalled.
var errJobCancelled = errors.New("job cancelled")

// Notifier publishes trail status notifications.
type Notifier interface {
	PublishNotification(ctx context.Context, msg rabbitmq.NotificationMessage) error
}

// TrailWorker owns one generation job end to end: claim, assemble, reconcile,
// finalize. All failure paths funnel into the job row; a job is never left
// processing when HandleGeneration returns.
type TrailWorker struct {
	trails      store.TrailStore
	modules     store.ModuleStore
	lessons     store.LessonStore
	jobs        store.JobStore
	blueprints  store.BlueprintStore
	matcher     *Matcher
	assembler   *Assembler
	preferences PreferenceProvider
	notifier    Notifier
	workerID    string
}

// NewTrailWorker creates a TrailWorker identified by workerID.
func NewTrailWorker(
	trails store.TrailStore,
	modules store.ModuleStore,
	lessons store.LessonStore,
	jobs store.JobStore,
	blueprints store.BlueprintStore,
	matcher *Matcher,
	assembler *Assembler,
	preferences PreferenceProvider,
	notifier Notifier,
	workerID string,
) *TrailWorker {
	return &TrailWorker{
		trails:      trails,
		modules:     modules,
		lessons:     lessons,
		jobs:        jobs,
		blueprints:  blueprints,
		matcher:     matcher,
		assembler:   assembler,
		preferences: preferences,
		notifier:    notifier,
		workerID:    workerID,
	}
}

// HandleGeneration processes one generation message. Delivery is
// at-least-once, so every step tolerates duplicates: a job already past
// queued is acked without work, content dedup absorbs double generation, and
// lesson fills overwrite idempotently.
//
// A non-nil return dead-letters the message; that only happens when the job
// row could not even be loaded. Once claimed, all failures are recorded on
// the row and nil is returned, because retries flow through the database
// scheduler rather than broker redelivery.
func (w *TrailWorker) HandleGeneration(ctx context.Context, msg rabbitmq.GenerationMessage) error {
	log := logger.FromContext(ctx)

	j, err := w.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.Warn("generation message for unknown job", "job_id", msg.JobID)
			return nil
		}
		return fmt.Errorf("failed to load job %s: %w", msg.JobID, err)
	}

	if j.Status != domain.JobStatusQueued {
		log.Info("skipping job not in queued state",
			"job_id", j.ID,
			"status", j.Status)
		return nil
	}

	if j.NextRetryAt != nil {
		// A duplicate delivery raced the retry scheduler; the scheduler will
		// republish once the job is eligible.
		log.Info("skipping job parked for retry", "job_id", j.ID)
		return nil
	}

	claimed, err := job.Claim(*j, w.workerID, time.Now().UTC())
	if err != nil {
		log.Warn("could not claim job", "job_id", j.ID, "error", err)
		return nil
	}
	if err := w.jobs.Update(ctx, &claimed); err != nil {
		return fmt.Errorf("failed to persist job claim: %w", err)
	}

	log.Info("claimed generation job",
		"job_id", claimed.ID,
		"trail_id", claimed.TrailID,
		"job_type", claimed.JobType,
		"attempt_count", claimed.AttemptCount)

	w.process(ctx, claimed)
	return nil
}

// process runs the assembly routine with the mandatory catch-all: no path out
// of here, panic included, leaves the job in processing.
func (w *TrailWorker) process(ctx context.Context, claimed domain.TrailGenerationJob) {
	log := logger.FromContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during trail assembly", "job_id", claimed.ID, "panic", r)
			w.failJob(ctx, claimed, fmt.Errorf("panic during trail assembly: %v", r))
		}
	}()

	tokens, err := w.assemble(ctx, &claimed)
	if err != nil {
		if errors.Is(err, errJobCancelled) {
			log.Info("job cancelled mid-flight", "job_id", claimed.ID)
			return
		}
		w.failJob(ctx, claimed, err)
		return
	}

	completed, err := job.Complete(claimed, tokens, time.Since(start).Milliseconds(), time.Now().UTC())
	if err != nil {
		log.Error("failed to build completion transition", "job_id", claimed.ID, "error", err)
		return
	}
	if err := w.jobs.Update(ctx, &completed); err != nil {
		log.Error("failed to persist job completion", "job_id", claimed.ID, "error", err)
		return
	}

	log.Info("generation job completed",
		"job_id", completed.ID,
		"trail_id", completed.TrailID,
		"tokens_used", tokens,
		"processing_time_ms", time.Since(start).Milliseconds())
}

// assemble drives the trail from its current state to as ready as this job
// can make it, persisting module-by-module so a crash leaves a valid partial
// trail.
func (w *TrailWorker) assemble(ctx context.Context, j *domain.TrailGenerationJob) (int, error) {
	log := logger.FromContext(ctx)

	trail, err := w.trails.GetByID(ctx, j.TrailID)
	if err != nil {
		return 0, fmt.Errorf("failed to load trail %s: %w", j.TrailID, err)
	}

	if trail.IsArchived() {
		log.Info("cancelling job for archived trail", "job_id", j.ID, "trail_id", trail.ID)
		w.cancelJob(ctx, *j)
		return 0, errJobCancelled
	}

	modules, err := w.modules.ListByTrail(ctx, trail.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list trail modules: %w", err)
	}

	if len(modules) == 0 {
		modules, err = w.buildSkeleton(ctx, trail)
		if err != nil {
			return 0, err
		}
	}

	gaps, err := parseGaps(j.Gaps)
	if err != nil {
		return 0, fmt.Errorf("%w: gaps: %v", generation.ErrMalformedPayload, err)
	}

	tokens := 0
	for i := range modules {
		module := &modules[i]
		if module.IsReady() {
			// Resume never regenerates finished modules.
			continue
		}
		if j.JobType == domain.JobTypeGapFill && len(gaps) > 0 && !gaps[module.Position] {
			continue
		}

		if err := w.ensureNotCancelled(ctx, j.ID); err != nil {
			return tokens, err
		}

		used, err := w.assembler.FillModule(ctx, trail, module)
		tokens += used
		if err != nil {
			return tokens, err
		}

		if err := w.reconcileTrail(ctx, trail); err != nil {
			return tokens, err
		}
	}

	if err := w.ensureNotCancelled(ctx, j.ID); err != nil {
		return tokens, err
	}

	if trail.Status == domain.TrailStatusReady {
		w.finalizeReady(ctx, j, trail)
	}

	return tokens, nil
}

// buildSkeleton matches a blueprint (falling back to the curriculum) and
// persists the pending module/placeholder-lesson tree.
func (w *TrailWorker) buildSkeleton(ctx context.Context, trail *domain.Trail) ([]domain.TrailModule, error) {
	log := logger.FromContext(ctx)

	preferences, err := w.preferences.PreferencesFor(ctx, trail.StudentID)
	if err != nil {
		log.Warn("failed to load student preferences, matching without them",
			"student_id", trail.StudentID,
			"error", err)
		preferences = nil
	}

	blueprint, err := w.matcher.Match(ctx, trail.Language, trail.Level, preferences)
	if err != nil {
		return nil, err
	}

	plans, err := w.assembler.PlanModules(ctx, trail, blueprint)
	if err != nil {
		return nil, err
	}

	modules, err := w.assembler.CreateSkeleton(ctx, trail, plans)
	if err != nil {
		return nil, err
	}

	if blueprint != nil {
		if err := w.blueprints.IncrementUsage(ctx, blueprint.ID); err != nil {
			log.Warn("failed to increment blueprint usage",
				"blueprint_id", blueprint.ID,
				"error", err)
		}
	}

	return modules, nil
}

// reconcileTrail recomputes the trail status from its modules and persists a
// change. The archived flag is sticky and never overwritten here.
func (w *TrailWorker) reconcileTrail(ctx context.Context, trail *domain.Trail) error {
	modules, err := w.modules.ListByTrail(ctx, trail.ID)
	if err != nil {
		return fmt.Errorf("failed to list modules for reconciliation: %w", err)
	}

	next := domain.TrailStatusFor(trail.Status, modules)
	if next == trail.Status {
		return nil
	}

	if next == domain.TrailStatusReady {
		if hash, err := w.contentHash(ctx, trail.ID); err != nil {
			logger.FromContext(ctx).Warn("failed to compute trail content hash",
				"trail_id", trail.ID,
				"error", err)
		} else {
			trail.ContentHash = hash
		}
	}

	trail.Status = next
	trail.UpdatedAt = time.Now().UTC()
	if err := w.trails.Update(ctx, trail); err != nil {
		return fmt.Errorf("failed to save trail status: %w", err)
	}

	logger.FromContext(ctx).Info("trail status changed",
		"trail_id", trail.ID,
		"status", next)
	return nil
}

// contentHash computes the trail's content identity from its filled lessons.
func (w *TrailWorker) contentHash(ctx context.Context, trailID uuid.UUID) (string, error) {
	lessons, err := w.lessons.ListByTrail(ctx, trailID)
	if err != nil {
		return "", fmt.Errorf("failed to list lessons: %w", err)
	}
	return domain.TrailContentHashFor(lessons)
}

// finalizeReady runs the completion side effects for a trail that just became
// ready: archive the trail this one replaces (refresh only) and publish the
// readiness notification. Both are best-effort; the trail itself is done.
func (w *TrailWorker) finalizeReady(ctx context.Context, j *domain.TrailGenerationJob, trail *domain.Trail) {
	log := logger.FromContext(ctx)

	if j.JobType == domain.JobTypeRefresh && trail.PreviousTrailID != nil {
		previous, err := w.trails.GetByID(ctx, *trail.PreviousTrailID)
		switch {
		case errors.Is(err, store.ErrTrailNotFound):
			log.Warn("previous trail missing on refresh completion",
				"trail_id", trail.ID,
				"previous_trail_id", *trail.PreviousTrailID)
		case err != nil:
			log.Error("failed to load previous trail", "trail_id", trail.ID, "error", err)
		case !previous.IsArchived():
			previous.Archive()
			if err := w.trails.Update(ctx, previous); err != nil {
				log.Error("failed to archive previous trail",
					"previous_trail_id", previous.ID,
					"error", err)
			} else {
				log.Info("archived replaced trail",
					"previous_trail_id", previous.ID,
					"trail_id", trail.ID)
			}
		}
	}

	err := w.notifier.PublishNotification(ctx, rabbitmq.NotificationMessage{
		TrailID:   trail.ID,
		StudentID: trail.StudentID,
		Status:    trail.Status,
	})
	if err != nil {
		log.Warn("failed to publish readiness notification",
			"trail_id", trail.ID,
			"error", err)
	}
}

// ensureNotCancelled reloads the job row and aborts if a cancellation landed.
func (w *TrailWorker) ensureNotCancelled(ctx context.Context, jobID uuid.UUID) error {
	current, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to re-check job %s: %w", jobID, err)
	}
	if current.Status == domain.JobStatusCancelled {
		return errJobCancelled
	}
	return nil
}

// cancelJob persists a cancellation transition, tolerating terminal states.
func (w *TrailWorker) cancelJob(ctx context.Context, j domain.TrailGenerationJob) {
	log := logger.FromContext(ctx)

	cancelled, err := job.Cancel(j, time.Now().UTC())
	if err != nil {
		log.Warn("could not cancel job", "job_id", j.ID, "error", err)
		return
	}
	if err := w.jobs.Update(ctx, &cancelled); err != nil {
		log.Error("failed to persist job cancellation", "job_id", j.ID, "error", err)
	}
}

// failJob records the failure on the job row and schedules a retry when the
// budget allows and the failure class is retryable.
func (w *TrailWorker) failJob(ctx context.Context, j domain.TrailGenerationJob, cause error) {
	log := logger.FromContext(ctx)
	now := time.Now().UTC()

	failed, err := job.Fail(j, failureCause(cause), cause.Error(), now)
	if err != nil {
		log.Error("failed to build failure transition", "job_id", j.ID, "error", err)
		return
	}

	next := failed
	if retryable(cause) && job.CanRetry(failed) {
		next, err = job.ScheduleRetry(failed, job.NextRetryAt(failed.AttemptCount, now), now)
		if err != nil {
			log.Error("failed to schedule retry", "job_id", j.ID, "error", err)
			next = failed
		}
	}

	if err := w.jobs.Update(ctx, &next); err != nil {
		log.Error("failed to persist job failure", "job_id", j.ID, "error", err)
		return
	}

	log.Warn("generation job failed",
		"job_id", next.ID,
		"trail_id", next.TrailID,
		"attempt_count", next.AttemptCount,
		"status", next.Status,
		"last_error", next.LastError)
}

// failureCause reduces a processing error to the stable cause string recorded
// as the job's last error. Provider failure classes keep their sentinel
// message; everything else is an assembly failure with diagnostics in the
// error details.
func failureCause(err error) string {
	for _, sentinel := range []error{
		generation.ErrProviderTimeout,
		generation.ErrQuotaExhausted,
		generation.ErrMalformedPayload,
		generation.ErrProviderFailure,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "trail assembly failure"
}

// retryable reports whether a failure class can succeed on another attempt.
// Malformed payloads are structural: regenerating deterministically broken
// content wastes the retry budget.
func retryable(err error) bool {
	return !errors.Is(err, generation.ErrMalformedPayload)
}

// parseGaps decodes a gap_fill job's module position list.
func parseGaps(raw json.RawMessage) (map[int]bool, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var positions []int
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, err
	}

	gaps := make(map[int]bool, len(positions))
	for _, p := range positions {
		gaps[p] = true
	}
	return gaps, nil
}
