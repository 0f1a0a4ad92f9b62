package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// JobQueueConfig holds settings for the job queue worker.
type JobQueueConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Concurrency  int
	// JobTimeout is the hard limit on a single job.
	JobTimeout time.Duration
}

// JobQueueWorker polls for pending jobs and dispatches them for conversion.
type JobQueueWorker struct {
	jobRepo    port.JobRepository
	jobService JobService
	cfg        JobQueueConfig
	wg         sync.WaitGroup
}

// NewJobQueueWorker creates a new JobQueueWorker.
func NewJobQueueWorker(jobRepo port.JobRepository, jobService JobService, cfg JobQueueConfig) *JobQueueWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &JobQueueWorker{
		jobRepo:    jobRepo,
		jobService: jobService,
		cfg:        cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight jobs have finished.
func (w *JobQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Info().
		Dur("poll", w.cfg.PollInterval).
		Int("concurrency", w.cfg.Concurrency).
		Int("max_attempts", w.cfg.MaxAttempts).
		Msg("jobQueueWorker: started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("jobQueueWorker: shutting down, waiting for in-flight jobs...")
			w.wg.Wait()
			log.Info().Msg("jobQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			jobs, err := w.jobRepo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Error().Err(err).Msg("jobQueueWorker: ClaimQueued error")
				continue
			}

			for i := range jobs {
				job := jobs[i]

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()

					// In-flight jobs finish even during shutdown.
					jobCtx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
					defer cancel()

					log.Info().Str("job_id", job.ID.String()).Int("attempt", job.Attempts).
						Msg("jobQueueWorker: dispatching job")
					w.jobService.ProcessJob(jobCtx, &job, w.cfg.MaxAttempts)
				}()
			}
		}
	}
}
