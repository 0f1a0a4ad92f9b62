package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

// CompletionUpdate carries the outputs recorded when a job completes.
type CompletionUpdate struct {
	AudioKey       string
	AudioURL       string
	CharsProcessed int
	TokensUsed     int
	EstimatedCost  decimal.Decimal
}

// JobRepository defines the contract for job-tracking persistence.
type JobRepository interface {
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	// ClaimQueued atomically moves up to limit runnable pending jobs to
	// processing, incrementing their attempt counters.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error)
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int) error
	MarkCompleted(ctx context.Context, jobID uuid.UUID, update CompletionUpdate) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error
	// ScheduleRetry returns a failed job to pending, runnable after retryAt.
	ScheduleRetry(ctx context.Context, jobID uuid.UUID, errMsg string, retryAt time.Time) error
	ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}
