package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/lingotrail/trail-api/internal/domain"
)

// RetryStore is the persistence surface the scheduler needs: jobs whose
// retry eligibility time has passed, and a way to save the republished state.
type RetryStore interface {
	// DueForRetry retrieves queued jobs whose next_retry_at is at or before now.
	DueForRetry(ctx context.Context, now time.Time) ([]domain.TrailGenerationJob, error)

	// Update persists the job's current state.
	Update(ctx context.Context, j *domain.TrailGenerationJob) error
}

// GenerationPublisher publishes a job reference onto the generation queue.
type GenerationPublisher interface {
	PublishGeneration(ctx context.Context, j *domain.TrailGenerationJob) error
}

// SchedulerConfig holds configuration for the retry scheduler.
type SchedulerConfig struct {
	// PollInterval determines how often due retries are collected.
	// If zero, defaults to 30 seconds.
	PollInterval time.Duration
}

// Scheduler periodically selects jobs whose scheduled retry time has passed
// and republishes them to the generation queue. ScheduleRetry only parks a
// job as queued-with-eligibility; this loop is what puts it back on the wire.
type Scheduler struct {
	store     RetryStore
	publisher GenerationPublisher
	config    SchedulerConfig
	logger    *slog.Logger
}

// NewScheduler creates a retry scheduler.
func NewScheduler(store RetryStore, publisher GenerationPublisher, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config.PollInterval == 0 {
		config.PollInterval = 30 * time.Second
	}

	return &Scheduler{
		store:     store,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// Run blocks, republishing due retries every poll interval until the context
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry scheduler stopping")
			return
		case <-ticker.C:
			s.RepublishDue(ctx)
		}
	}
}

// RepublishDue performs a single pass: every queued job whose retry time has
// passed is republished and its retry schedule cleared. Errors on individual
// jobs are logged and skipped so one bad row never stalls the rest.
func (s *Scheduler) RepublishDue(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.store.DueForRetry(ctx, now)
	if err != nil {
		s.logger.Error("failed to collect due retries", "error", err)
		return
	}

	for i := range due {
		j := due[i]

		// Clear the schedule before publishing so the next poll cannot
		// republish the same job while the message is in flight.
		j.NextRetryAt = nil
		j.UpdatedAt = now
		if err := s.store.Update(ctx, &j); err != nil {
			s.logger.Error("failed to clear retry schedule",
				"job_id", j.ID,
				"trail_id", j.TrailID,
				"error", err)
			continue
		}

		if err := s.publisher.PublishGeneration(ctx, &j); err != nil {
			s.logger.Error("failed to republish job for retry",
				"job_id", j.ID,
				"trail_id", j.TrailID,
				"error", err)
			continue
		}

		s.logger.Info("republished job for retry",
			"job_id", j.ID,
			"trail_id", j.TrailID,
			"attempt_count", j.AttemptCount)
	}
}
