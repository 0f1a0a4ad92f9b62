package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// GenericFailureMessage is recorded for failures the user cannot act on.
const GenericFailureMessage = "An unexpected error occurred."

const audioContentType = "audio/mpeg"

// JobService runs queued conversion jobs end to end.
type JobService interface {
	// ProcessJob converts one claimed job and records the outcome. It never
	// returns an error: every failure is persisted on the job record.
	ProcessJob(ctx context.Context, job *domain.Job, maxAttempts int)
}

// JobServiceConfig holds job-level settings.
type JobServiceConfig struct {
	Bucket         string
	RetryCountdown time.Duration
	// ConversionTimeout bounds the pipeline run, leaving time to record a
	// failure before the worker's hard limit.
	ConversionTimeout time.Duration
	// PresignExpiry is the lifetime in seconds of the download link sent with
	// the completion event. Zero leaves the link out.
	PresignExpiry int64
}

type jobService struct {
	jobRepo   port.JobRepository
	storage   port.ObjectStorage
	converter port.DocumentConverter
	ledger    port.CreditLedger
	publisher port.ProgressPublisher
	cfg       JobServiceConfig
	now       func() time.Time
}

// NewJobService creates a JobService. ledger and publisher may be nil.
func NewJobService(
	jobRepo port.JobRepository,
	storage port.ObjectStorage,
	converter port.DocumentConverter,
	ledger port.CreditLedger,
	publisher port.ProgressPublisher,
	cfg JobServiceConfig,
) JobService {
	if cfg.RetryCountdown <= 0 {
		cfg.RetryCountdown = 60 * time.Second
	}
	return &jobService{
		jobRepo:   jobRepo,
		storage:   storage,
		converter: converter,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *jobService) ProcessJob(ctx context.Context, job *domain.Job, maxAttempts int) {
	logger := log.With().Str("job_id", job.ID.String()).Int("attempt", job.Attempts).Logger()

	if err := s.jobRepo.MarkProcessing(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("jobService.ProcessJob: failed to mark processing")
		s.handleJobError(ctx, job, domain.SystemError("setup", err), maxAttempts)
		return
	}
	s.publish(ctx, job, domain.JobStatusProcessing, 0, "")

	pdf, err := s.storage.Download(ctx, s.cfg.Bucket, job.PDFKey)
	if err != nil {
		s.handleJobError(ctx, job, domain.SystemError("download", err), maxAttempts)
		return
	}

	convCtx := ctx
	if s.cfg.ConversionTimeout > 0 {
		var cancel context.CancelFunc
		convCtx, cancel = context.WithTimeout(ctx, s.cfg.ConversionTimeout)
		defer cancel()
	}

	handle, err := s.converter.Convert(convCtx, pdf, job.Params(), func(p int) {
		s.reportProgress(ctx, job, p)
	})
	if err != nil {
		s.handleJobError(ctx, job, err, maxAttempts)
		return
	}
	result := handle.Result()

	if s.cancelledDuringConversion(ctx, job) {
		if err := handle.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("jobService.ProcessJob: failed to clean conversion work dir")
		}
		logger.Info().Msg("jobService.ProcessJob: job cancelled during conversion, discarding audio")
		return
	}

	audioKey := job.AudioObjectKey()
	out, uploadErr := s.uploadAudio(ctx, result.AudioFilePath, audioKey)

	// The audio is either durable or lost; the work dir goes either way.
	if err := handle.Cleanup(); err != nil {
		logger.Warn().Err(err).Msg("jobService.ProcessJob: failed to clean conversion work dir")
	}

	if uploadErr != nil {
		s.handleJobError(ctx, job, domain.SystemError("upload", uploadErr), maxAttempts)
		return
	}

	update := port.CompletionUpdate{
		AudioKey:       audioKey,
		AudioURL:       out.Location,
		CharsProcessed: result.Usage.CharactersSynthesized,
		TokensUsed:     result.Usage.LLMTokensUsed,
		EstimatedCost:  result.EstimatedCost,
	}
	if err := s.jobRepo.MarkCompleted(ctx, job.ID, update); err != nil {
		logger.Error().Err(err).Msg("jobService.ProcessJob: failed to record completion")
		s.handleJobError(ctx, job, domain.SystemError("complete", err), maxAttempts)
		return
	}
	link := s.presignAudio(ctx, job, audioKey)
	s.publishEvent(ctx, port.ProgressEvent{
		JobID:    job.ID,
		Status:   domain.JobStatusCompleted,
		Progress: 100,
		AudioURL: link,
	})

	logger.Info().
		Str("audio_key", audioKey).
		Bool("presigned", link != "").
		Int("chars", update.CharsProcessed).
		Int("tokens", update.TokensUsed).
		Str("estimated_cost", update.EstimatedCost.String()).
		Msg("jobService.ProcessJob: job completed")

	s.deductCredits(ctx, job, result)
}

// cancelledDuringConversion re-reads the job. A failed read is treated as
// not cancelled.
func (s *jobService) cancelledDuringConversion(ctx context.Context, job *domain.Job) bool {
	current, err := s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID.String()).
			Msg("jobService.cancelledDuringConversion: failed to reload job")
		return false
	}
	return current.Status == domain.JobStatusCancelled
}

// presignAudio returns a time-limited download link, or "" when disabled or
// when signing fails.
func (s *jobService) presignAudio(ctx context.Context, job *domain.Job, key string) string {
	if s.cfg.PresignExpiry <= 0 {
		return ""
	}
	link, err := s.storage.GetPresignedURL(ctx, s.cfg.Bucket, key, s.cfg.PresignExpiry)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID.String()).
			Msg("jobService.presignAudio: failed to presign audio link")
		return ""
	}
	return link
}

func (s *jobService) uploadAudio(ctx context.Context, path, key string) (*port.UploadOutput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening final audio: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat final audio: %w", err)
	}

	out, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        f,
		ContentType: audioContentType,
		Size:        info.Size(),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading audio: %w", err)
	}
	return out, nil
}

// deductCredits charges the user after the job is already completed. A
// refused or failed debit never reverses the conversion.
func (s *jobService) deductCredits(ctx context.Context, job *domain.Job, result domain.ConversionResult) {
	if s.ledger == nil || !result.EstimatedCost.IsPositive() {
		return
	}
	ok, err := s.ledger.Deduct(ctx, job.UserID, result.EstimatedCost)
	switch {
	case err != nil:
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("jobService.deductCredits: debit failed")
	case !ok:
		log.Warn().
			Str("job_id", job.ID.String()).
			Str("user_id", job.UserID.String()).
			Str("amount", result.EstimatedCost.String()).
			Msg("jobService.deductCredits: insufficient credits")
	}
}

// handleJobError fails the job. System failures are rescheduled while the
// job has attempts left; user failures are final.
func (s *jobService) handleJobError(ctx context.Context, job *domain.Job, jobErr error, maxAttempts int) {
	if domain.IsUserError(jobErr) {
		msg := userMessage(jobErr)
		log.Warn().Err(jobErr).Str("job_id", job.ID.String()).Msg("jobService.handleJobError: job failed")
		s.failJob(ctx, job, msg)
		return
	}

	log.Error().Err(jobErr).Str("job_id", job.ID.String()).Int("attempt", job.Attempts).
		Msg("jobService.handleJobError: job failed with system error")
	s.failJob(ctx, job, GenericFailureMessage)

	if job.Attempts >= maxAttempts {
		return
	}
	retryAt := s.now().Add(s.cfg.RetryCountdown)
	if err := s.jobRepo.ScheduleRetry(ctx, job.ID, GenericFailureMessage, retryAt); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("jobService.handleJobError: failed to schedule retry")
		return
	}
	log.Info().Str("job_id", job.ID.String()).Time("retry_after", retryAt).
		Msg("jobService.handleJobError: job queued for retry")
}

func (s *jobService) failJob(ctx context.Context, job *domain.Job, msg string) {
	if err := s.jobRepo.MarkFailed(ctx, job.ID, msg); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("jobService.failJob: failed to update status")
	}
	s.publish(ctx, job, domain.JobStatusFailed, -1, msg)
}

func (s *jobService) reportProgress(ctx context.Context, job *domain.Job, p int) {
	if err := s.jobRepo.UpdateProgress(ctx, job.ID, p); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID.String()).Int("progress", p).
			Msg("jobService.reportProgress: failed to persist progress")
	}
	s.publish(ctx, job, domain.JobStatusProcessing, p, "")
}

// publish is best effort. A negative progress leaves the event at zero.
func (s *jobService) publish(ctx context.Context, job *domain.Job, status domain.JobStatus, p int, msg string) {
	event := port.ProgressEvent{JobID: job.ID, Status: status, Message: msg}
	if p >= 0 {
		event.Progress = p
	}
	s.publishEvent(ctx, event)
}

func (s *jobService) publishEvent(ctx context.Context, event port.ProgressEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Debug().Err(err).Str("job_id", event.JobID.String()).Msg("jobService.publish: dropped progress event")
	}
}

// userMessage is the error text without the internal stage prefix.
func userMessage(err error) string {
	var convErr *domain.ConversionError
	if errors.As(err, &convErr) && convErr.Err != nil {
		return convErr.Err.Error()
	}
	return err.Error()
}
