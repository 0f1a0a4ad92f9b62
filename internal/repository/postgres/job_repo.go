package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

const jobColumns = `id, user_id, original_filename, pdf_s3_key, audio_s3_key, audio_s3_url,
	status, progress_percentage, error_message, voice_provider, voice_type, reading_speed,
	include_summary, conversion_mode, estimated_cost, chars_processed, tokens_used,
	attempts, retry_after, created_at, started_at, completed_at`

type jobRepo struct {
	db *sqlx.DB
}

// NewJobRepo creates a new PostgreSQL-backed JobRepository.
func NewJobRepo(db *sqlx.DB) port.JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job,
		"SELECT "+jobColumns+" FROM jobs WHERE id = $1", jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}
	return &job, nil
}

// ClaimQueued locks runnable pending jobs with SKIP LOCKED so concurrent
// workers never claim the same row, and returns them post-update.
func (r *jobRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `UPDATE jobs SET
		status = $1, attempts = attempts + 1, started_at = $2, retry_after = NULL
	WHERE id IN (
		SELECT id FROM jobs
		WHERE status = $3 AND (retry_after IS NULL OR retry_after <= $2)
		ORDER BY created_at
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + jobColumns

	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs, query,
		domain.JobStatusProcessing, time.Now().UTC(), domain.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.ClaimQueued: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	return r.exec(ctx, "jobRepo.MarkProcessing",
		`UPDATE jobs SET status = $1, progress_percentage = 0, error_message = NULL,
			started_at = COALESCE(started_at, $2)
		WHERE id = $3`,
		domain.JobStatusProcessing, time.Now().UTC(), jobID)
}

// UpdateProgress never moves progress backwards.
func (r *jobRepo) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET progress_percentage = GREATEST(progress_percentage, $1)
		WHERE id = $2 AND status = $3`,
		progress, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("jobRepo.UpdateProgress: %w", err)
	}
	return nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, jobID uuid.UUID, update port.CompletionUpdate) error {
	return r.exec(ctx, "jobRepo.MarkCompleted",
		`UPDATE jobs SET status = $1, progress_percentage = 100, error_message = NULL,
			audio_s3_key = $2, audio_s3_url = $3, chars_processed = $4, tokens_used = $5,
			estimated_cost = $6, completed_at = $7, retry_after = NULL
		WHERE id = $8`,
		domain.JobStatusCompleted, update.AudioKey, update.AudioURL, update.CharsProcessed,
		update.TokensUsed, update.EstimatedCost, time.Now().UTC(), jobID)
}

func (r *jobRepo) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return r.exec(ctx, "jobRepo.MarkFailed",
		`UPDATE jobs SET status = $1, error_message = $2, completed_at = $3, retry_after = NULL
		WHERE id = $4`,
		domain.JobStatusFailed, errMsg, time.Now().UTC(), jobID)
}

func (r *jobRepo) ScheduleRetry(ctx context.Context, jobID uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.exec(ctx, "jobRepo.ScheduleRetry",
		`UPDATE jobs SET status = $1, error_message = $2, retry_after = $3, completed_at = NULL
		WHERE id = $4`,
		domain.JobStatusPending, errMsg, retryAt.UTC(), jobID)
}

func (r *jobRepo) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs,
		"SELECT "+jobColumns+` FROM jobs
		WHERE status = $1 AND completed_at < $2
		ORDER BY completed_at
		LIMIT $3`,
		domain.JobStatusCompleted, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.ListCompletedBefore: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) Delete(ctx context.Context, jobID uuid.UUID) error {
	return r.exec(ctx, "jobRepo.Delete", "DELETE FROM jobs WHERE id = $1", jobID)
}

// exec runs a single-row statement and maps zero affected rows to ErrJobNotFound.
func (r *jobRepo) exec(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
