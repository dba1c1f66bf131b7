package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/lingotrail/trail-api/internal/domain"
)

// SweepStore is the persistence surface the stale-job sweeper needs.
type SweepStore interface {
	// StaleProcessing retrieves processing jobs whose start time is older
	// than the given duration.
	StaleProcessing(ctx context.Context, olderThan time.Duration) ([]domain.TrailGenerationJob, error)

	// Update persists the job's current state.
	Update(ctx context.Context, j *domain.TrailGenerationJob) error
}

// SweeperConfig holds configuration for the stale-processing sweeper.
type SweeperConfig struct {
	// HeartbeatTimeout defines how long a job can sit in processing before
	// its worker is presumed dead. If zero, defaults to 30 minutes.
	HeartbeatTimeout time.Duration

	// CheckInterval defines how often to sweep. If zero, defaults to 5 minutes.
	CheckInterval time.Duration
}

// Sweeper finds jobs stuck in processing past the worker heartbeat window and
// forces them onward: back to queued with a retry schedule while attempts
// remain, terminally failed once the budget is spent. Nothing else reclaims
// a job whose worker died mid-generation, so running this sweep somewhere in
// the deployment is mandatory.
type Sweeper struct {
	store  SweepStore
	config SweeperConfig
	logger *slog.Logger
}

// NewSweeper creates a stale-processing sweeper.
func NewSweeper(store SweepStore, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 30 * time.Minute
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = 5 * time.Minute
	}

	return &Sweeper{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Run blocks, sweeping every check interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stale job sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass over stale processing jobs. Each stale job is
// first failed with a heartbeat-timeout error (preserving the attempt count
// consumed by the dead worker), then rescheduled if its budget allows.
func (s *Sweeper) Sweep(ctx context.Context) {
	stale, err := s.store.StaleProcessing(ctx, s.config.HeartbeatTimeout)
	if err != nil {
		s.logger.Error("failed to check for stale jobs", "error", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	s.logger.Info("found stale processing jobs", "count", len(stale))
	now := time.Now().UTC()

	for i := range stale {
		j := stale[i]
		workerID := j.WorkerID

		failed, err := Fail(j, "worker heartbeat timeout", map[string]any{
			"worker_id":  workerID,
			"started_at": j.StartedAt,
		}, now)
		if err != nil {
			s.logger.Error("failed to fail stale job",
				"job_id", j.ID,
				"trail_id", j.TrailID,
				"error", err)
			continue
		}

		next := failed
		if CanRetry(failed) {
			next, err = ScheduleRetry(failed, NextRetryAt(failed.AttemptCount, now), now)
			if err != nil {
				s.logger.Error("failed to reschedule stale job",
					"job_id", j.ID,
					"trail_id", j.TrailID,
					"error", err)
				next = failed
			}
		}

		if err := s.store.Update(ctx, &next); err != nil {
			s.logger.Error("failed to persist swept job",
				"job_id", j.ID,
				"trail_id", j.TrailID,
				"error", err)
			continue
		}

		s.logger.Info("reclaimed stale job",
			"job_id", j.ID,
			"trail_id", j.TrailID,
			"worker_id", workerID,
			"status", next.Status,
			"attempt_count", next.AttemptCount)
	}
}
