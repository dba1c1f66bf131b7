package worker

import (
	"context"
	"fmt"

	"github.com/lingotrail/trail-api/internal/job"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// Recovery republishes queued jobs whose broker messages were lost to a
// worker or broker crash. The job row is the source of truth; a queued row
// with no retry schedule should always have a message in flight, so on
// startup every such row is put back on the wire. Duplicate publishes are
// harmless because handling is idempotent.
type Recovery struct {
	jobs      store.JobStore
	publisher job.GenerationPublisher
}

// NewRecovery creates a Recovery pass over the job store.
func NewRecovery(jobs store.JobStore, publisher job.GenerationPublisher) *Recovery {
	return &Recovery{jobs: jobs, publisher: publisher}
}

// Run republishes all queued, unscheduled jobs. Jobs parked for retry are
// left to the scheduler; stale processing jobs are left to the sweeper.
func (r *Recovery) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	queued, err := r.jobs.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queued jobs for recovery: %w", err)
	}

	if len(queued) == 0 {
		return nil
	}

	log.Info("recovering queued jobs", "count", len(queued))

	republished := 0
	for i := range queued {
		j := queued[i]
		if err := r.publisher.PublishGeneration(ctx, &j); err != nil {
			log.Error("failed to republish queued job",
				"job_id", j.ID,
				"trail_id", j.TrailID,
				"error", err)
			continue
		}
		republished++
	}

	log.Info("recovery pass finished", "republished", republished, "total", len(queued))
	return nil
}
