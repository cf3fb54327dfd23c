package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/billing"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/handler"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/pdf"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/routes"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/storage"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/store"
	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info().Msg("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info().Msg("Database connection established")

	// Run migrations
	logger.Info().Msg("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info().Msg("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	db := store.New(pool)

	// Object store
	var objects storage.ObjectStore
	switch cfg.Storage.Provider {
	case "memory":
		objects = storage.NewMemoryStore()
		logger.Warn().Msg("Using in-memory object store; uploads are lost on restart")
	default:
		objects, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKeyID,
			SecretKey: cfg.Storage.SecretAccessKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize object store: %w", err)
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	// Pipeline
	bucket := cfg.Storage.DocumentsBucket
	merger := pdf.NewCpuMerger()
	validator := billing.NewValidator(db, objects, bucket, logger)
	consolidator := billing.NewConsolidator(db, objects, merger, bucket, metrics, logger)
	bundler := billing.NewBundler(objects, bucket, logger)
	service := billing.NewService(db, validator, billing.NewSpreadsheetBuilder(), consolidator, bundler, metrics, logger)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routes.Register(e, routes.Deps{
		Billing:  handler.NewBillingHandler(service, logger),
		Metrics:  metrics,
		Registry: registry,
		Logger:   logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
