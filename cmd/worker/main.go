// Package main implements the trail generation worker: it consumes
// generation jobs from the broker, assembles trail content module by module,
// and runs the supervisory loops that recover lost messages, republish due
// retries, and sweep jobs whose worker died mid-flight.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lingotrail/trail-api/internal/config"
	"github.com/lingotrail/trail-api/internal/generation"
	"github.com/lingotrail/trail-api/internal/job"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/platform/postgres"
	"github.com/lingotrail/trail-api/internal/platform/rabbitmq"
	"github.com/lingotrail/trail-api/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)

	workerID := cfg.Worker.ID
	if workerID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to derive worker ID: %w", err)
		}
		workerID = hostname
	}
	appLogger.Info("worker starting",
		"worker_id", workerID,
		"prefetch", cfg.Worker.Prefetch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	conn, err := amqp.Dial(cfg.Broker.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open broker channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := rabbitmq.DeclareTopology(ch); err != nil {
		return fmt.Errorf("failed to declare broker topology: %w", err)
	}

	publisher := rabbitmq.NewPublisher(ch)

	trailStore := postgres.NewPostgresTrailStore(db)
	moduleStore := postgres.NewPostgresModuleStore(db)
	lessonStore := postgres.NewPostgresLessonStore(db)
	jobStore := postgres.NewPostgresJobStore(db)
	blockStore := postgres.NewPostgresContentBlockStore(db)
	blueprintStore := postgres.NewPostgresBlueprintStore(db)
	curriculumStore := postgres.NewPostgresCurriculumStore(db)

	provider := generation.NewHTTPProvider(
		cfg.Provider.URL,
		cfg.Provider.APIKey,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)

	matcher := worker.NewMatcher(blueprintStore)
	assembler := worker.NewAssembler(moduleStore, lessonStore, blockStore, curriculumStore, provider, nil)
	trailWorker := worker.NewTrailWorker(
		trailStore,
		moduleStore,
		lessonStore,
		jobStore,
		blueprintStore,
		matcher,
		assembler,
		worker.StaticPreferences{},
		publisher,
		workerID,
	)

	// Republish queued jobs whose messages were lost before this worker
	// came up. Runs before consuming so the queue is complete from the start.
	recovery := worker.NewRecovery(jobStore, publisher)
	if err := recovery.Run(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	scheduler := job.NewScheduler(jobStore, publisher, job.SchedulerConfig{
		PollInterval: time.Duration(cfg.Worker.RetryPollIntervalSeconds) * time.Second,
	}, appLogger)
	scheduler.RepublishDue(ctx)
	go scheduler.Run(ctx)

	sweeper := job.NewSweeper(jobStore, job.SweeperConfig{
		HeartbeatTimeout: time.Duration(cfg.Worker.HeartbeatTimeoutSeconds) * time.Second,
		CheckInterval:    time.Duration(cfg.Worker.SweepIntervalSeconds) * time.Second,
	}, appLogger)
	// One pass up front so jobs orphaned by a dead worker are reset at
	// startup rather than waiting out the first tick.
	sweeper.Sweep(ctx)
	go sweeper.Run(ctx)

	consumer := rabbitmq.NewConsumer(ch, workerID, cfg.Worker.Prefetch)
	appLogger.Info("consuming generation jobs")
	if err := consumer.Consume(ctx, trailWorker.HandleGeneration); err != nil {
		return fmt.Errorf("consumer stopped: %w", err)
	}

	appLogger.Info("worker shutdown completed")
	return nil
}
