package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/audio"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/cost"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/extract"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/handler"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/logger"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/pipeline"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/progress"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/repository/postgres"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/router"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/service"
	s3storage "github.com/jpotterlabs/pdf2audiobook-base/internal/storage/s3"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/transform"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(logger.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "pdf2audio-worker",
	})

	if err := config.ApplyEnvironment(cfg); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	jobRepo := postgres.NewJobRepo(db)
	ledger := postgres.NewCreditLedger(db)

	// Initialize storage
	storage, err := s3storage.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	publisher, closePublisher, err := progress.NewFromConfig(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize progress publisher: %w", err)
	}
	defer func() { _ = closePublisher() }()

	// Initialize pipeline
	orchestrator := pipeline.NewOrchestrator(
		extract.NewDefaultExtractor(cfg.Pipeline.OCRLanguage),
		transform.NewTransformerFromConfig(&cfg.LLM),
		tts.NewRegistryFromConfig(&cfg.TTS),
		audio.NewAssembler(&cfg.Audio),
		cost.NewEstimator(&cfg.Cost, &cfg.TTS),
		pipeline.Config{
			MaxChunkChars:        cfg.Pipeline.MaxChunkChars,
			SynthesisConcurrency: cfg.Pipeline.SynthesisConcurrency,
			WorkRoot:             cfg.WorkRoot(),
		},
	)

	// Initialize services
	jobSvc := service.NewJobService(jobRepo, storage, orchestrator, ledger, publisher, service.JobServiceConfig{
		Bucket:            cfg.S3.Bucket,
		RetryCountdown:    time.Duration(cfg.Queue.RetryCountdownSecs) * time.Second,
		ConversionTimeout: cfg.Queue.SoftTimeLimit,
		PresignExpiry:     cfg.S3.PresignExpiry,
	})
	queueWorker := service.NewJobQueueWorker(jobRepo, jobSvc, service.JobQueueConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Concurrency:  cfg.Queue.Concurrency,
		JobTimeout:   cfg.Queue.HardTimeLimit,
	})
	sweeper := service.NewRetentionSweeper(jobRepo, storage, service.RetentionConfig{
		Bucket:    cfg.S3.Bucket,
		MaxAge:    time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour,
		Interval:  cfg.Retention.SweepInterval,
		BatchSize: cfg.Retention.BatchSize,
	})

	// Health server
	checks := map[string]handler.CheckFunc{"database": db.PingContext}
	if pinger, ok := publisher.(interface{ Ping(context.Context) error }); ok && cfg.Redis.Addr != "" {
		checks["redis"] = pinger.Ping
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.HealthAddr,
		Handler:           router.Setup(handler.NewHealthHandler(checks)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queueWorker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", cfg.Server.HealthAddr).Msg("worker: health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		zlog.Info().Msg("worker: shutdown signal received")
	case err := <-serverErr:
		stop()
		wg.Wait()
		return fmt.Errorf("health server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("worker: health server shutdown")
	}

	wg.Wait()
	zlog.Info().Msg("worker: stopped")
	return nil
}
