package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// RetentionConfig holds settings for the retention sweeper.
type RetentionConfig struct {
	Bucket    string
	MaxAge    time.Duration
	Interval  time.Duration
	BatchSize int
}

// RetentionSweeper removes completed jobs, and their stored files, once they
// are older than MaxAge.
type RetentionSweeper struct {
	jobRepo port.JobRepository
	storage port.ObjectStorage
	cfg     RetentionConfig
	now     func() time.Time
}

// NewRetentionSweeper creates a RetentionSweeper.
func NewRetentionSweeper(jobRepo port.JobRepository, storage port.ObjectStorage, cfg RetentionConfig) *RetentionSweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &RetentionSweeper{jobRepo: jobRepo, storage: storage, cfg: cfg, now: time.Now}
}

// Start sweeps once immediately and then every Interval until ctx is canceled.
func (r *RetentionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("max_age", r.cfg.MaxAge).Dur("interval", r.cfg.Interval).Msg("retentionSweeper: started")
	for {
		r.runLogged(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("retentionSweeper: stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *RetentionSweeper) runLogged(ctx context.Context) {
	removed, err := r.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("retentionSweeper: sweep failed")
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("retentionSweeper: sweep finished")
	}
}

// Sweep deletes every expired completed job and returns how many were
// removed. A job whose files cannot be deleted is skipped and kept.
func (r *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.cfg.MaxAge)
	removed := 0

	for {
		jobs, err := r.jobRepo.ListCompletedBefore(ctx, cutoff, r.cfg.BatchSize)
		if err != nil {
			return removed, err
		}

		batchRemoved := 0
		for i := range jobs {
			if r.removeJob(ctx, &jobs[i]) {
				batchRemoved++
			}
		}
		removed += batchRemoved

		if len(jobs) < r.cfg.BatchSize || batchRemoved == 0 {
			return removed, nil
		}
	}
}

func (r *RetentionSweeper) removeJob(ctx context.Context, job *domain.Job) bool {
	keys := []string{job.PDFKey}
	if job.AudioKey != nil && *job.AudioKey != "" {
		keys = append(keys, *job.AudioKey)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := r.storage.Delete(ctx, r.cfg.Bucket, key); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID.String()).Str("key", key).
				Msg("retentionSweeper.removeJob: failed to delete object")
			return false
		}
	}
	if err := r.jobRepo.Delete(ctx, job.ID); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("retentionSweeper.removeJob: failed to delete job")
		return false
	}
	return true
}
