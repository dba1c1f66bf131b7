// Package main implements the trail API server: it accepts generation
// requests, serves trail/module/lesson reads, and records lesson progress.
// Generation itself happens in the worker binary; the server only enqueues.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lingotrail/trail-api/internal/api"
	"github.com/lingotrail/trail-api/internal/config"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/platform/postgres"
	"github.com/lingotrail/trail-api/internal/platform/rabbitmq"
	"github.com/lingotrail/trail-api/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

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

	if err := postgres.MigrateUp(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	appLogger.Info("database migrations applied")

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

	trailService := service.NewTrailService(
		db,
		postgres.NewPostgresTrailStore(db),
		postgres.NewPostgresModuleStore(db),
		postgres.NewPostgresLessonStore(db),
		postgres.NewPostgresJobStore(db),
		postgres.NewPostgresProgressStore(db),
		postgres.NewPostgresCurriculumStore(db),
		publisher,
	)

	handler := api.NewTrailHandler(trailService, appLogger)
	router := api.NewRouter(handler, appLogger)

	return serveHTTP(ctx, router, cfg.Server.Port, appLogger)
}

// serveHTTP runs the HTTP server until the context is cancelled, then drains
// in-flight requests with a bounded shutdown.
func serveHTTP(ctx context.Context, router http.Handler, port int, appLogger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("starting server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		appLogger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	appLogger.Info("server shutdown completed")
	return nil
}
