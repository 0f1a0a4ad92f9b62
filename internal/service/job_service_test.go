package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/service"
	"github.com/jpotterlabs/pdf2audiobook-base/mocks"
)

type jobFixture struct {
	repo      *mocks.MockJobRepo
	storage   *mocks.MockObjectStorage
	converter *mocks.MockDocumentConverter
	ledger    *mocks.MockCreditLedger
	publisher *mocks.MockProgressPublisher
	svc       service.JobService
}

func newJobFixture() *jobFixture {
	f := &jobFixture{
		repo:      new(mocks.MockJobRepo),
		storage:   new(mocks.MockObjectStorage),
		converter: new(mocks.MockDocumentConverter),
		ledger:    new(mocks.MockCreditLedger),
		publisher: new(mocks.MockProgressPublisher),
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = service.NewJobService(f.repo, f.storage, f.converter, f.ledger, f.publisher, service.JobServiceConfig{
		Bucket:         "audiobooks",
		RetryCountdown: 60 * time.Second,
		PresignExpiry:  900,
	})
	return f
}

func testJob(attempts int) *domain.Job {
	return &domain.Job{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		PDFKey:         "pdfs/book.pdf",
		Status:         domain.JobStatusProcessing,
		VoiceProvider:  domain.ProviderMock,
		VoiceType:      "default",
		ReadingSpeed:   1.0,
		ConversionMode: domain.ModeFull,
		Attempts:       attempts,
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "final_audio.mp3")
	require.NoError(t, os.WriteFile(p, []byte("mp3-data"), 0o600))
	return p
}

func TestProcessJob_Success(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)
	audioPath := writeAudio(t)
	cost := decimal.RequireFromString("0.000165")

	handle := new(mocks.MockConversionHandle)
	handle.On("Result").Return(domain.ConversionResult{
		AudioFilePath: audioPath,
		EstimatedCost: cost,
		Usage:         domain.UsageStats{CharactersSynthesized: 11, LLMTokensUsed: 0},
	})

	uploaded := false
	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil).Once()
	f.storage.On("Download", mock.Anything, "audiobooks", "pdfs/book.pdf").Return([]byte("%PDF"), nil).Once()
	f.converter.On("Convert", mock.Anything, []byte("%PDF"), job.Params(), mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(3).(domain.ProgressFunc)(40)
		}).
		Return(handle, nil).Once()
	f.repo.On("UpdateProgress", mock.Anything, job.ID, 40).Return(nil).Once()
	f.repo.On("GetByID", mock.Anything, job.ID).Return(job, nil).Once()
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "audiobooks" &&
			in.Key == "audio/"+job.UserID.String()+"/"+job.ID.String()+".mp3" &&
			in.ContentType == "audio/mpeg" &&
			in.Size == int64(len("mp3-data"))
	})).Run(func(args mock.Arguments) {
		body, err := io.ReadAll(args.Get(1).(port.UploadInput).Body)
		assert.NoError(t, err)
		assert.Equal(t, "mp3-data", string(body))
		uploaded = true
	}).
		Return(&port.UploadOutput{Location: "https://s3/audio.mp3"}, nil).Once()
	handle.On("Cleanup").Run(func(mock.Arguments) {
		assert.True(t, uploaded, "cleanup must run after upload")
	}).Return(nil).Once()
	f.repo.On("MarkCompleted", mock.Anything, job.ID, mock.MatchedBy(func(u port.CompletionUpdate) bool {
		return u.AudioURL == "https://s3/audio.mp3" && u.CharsProcessed == 11 && u.TokensUsed == 0 && u.EstimatedCost.Equal(cost)
	})).Return(nil).Once()
	f.storage.On("GetPresignedURL", mock.Anything, "audiobooks", job.AudioObjectKey(), int64(900)).
		Return("https://s3/audio.mp3?X-Amz-Signature=abc", nil).Once()
	f.ledger.On("Deduct", mock.Anything, job.UserID, cost).Return(true, nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
	f.converter.AssertExpectations(t)
	handle.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e port.ProgressEvent) bool {
		return e.Status == domain.JobStatusCompleted && e.Progress == 100 &&
			e.AudioURL == "https://s3/audio.mp3?X-Amz-Signature=abc"
	}))
}

func TestProcessJob_InsufficientCreditsKeepsCompletion(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)
	cost := decimal.NewFromInt(2)

	handle := new(mocks.MockConversionHandle)
	handle.On("Result").Return(domain.ConversionResult{AudioFilePath: writeAudio(t), EstimatedCost: cost})
	handle.On("Cleanup").Return(nil)
	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(handle, nil)
	f.repo.On("GetByID", mock.Anything, job.ID).Return(job, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{Location: "u"}, nil)
	f.repo.On("MarkCompleted", mock.Anything, job.ID, mock.Anything).Return(nil).Once()
	f.storage.On("GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("signed", nil)
	f.ledger.On("Deduct", mock.Anything, job.UserID, cost).Return(false, nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_UserErrorFailsWithoutRetry(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)

	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.UserError("transform", domain.ErrMissingCredentials))
	f.repo.On("MarkFailed", mock.Anything, job.ID, domain.ErrMissingCredentials.Error()).Return(nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Deduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_SystemErrorSchedulesRetry(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)
	start := time.Now()

	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("s3 download: timeout"))
	f.repo.On("MarkFailed", mock.Anything, job.ID, service.GenericFailureMessage).Return(nil).Once()
	f.repo.On("ScheduleRetry", mock.Anything, job.ID, service.GenericFailureMessage, mock.MatchedBy(func(at time.Time) bool {
		return !at.Before(start.Add(60*time.Second)) && at.Before(start.Add(65*time.Second))
	})).Return(nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.converter.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_SystemErrorOnLastAttemptIsFinal(t *testing.T) {
	f := newJobFixture()
	job := testJob(3)

	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.SystemError("assemble", domain.ErrAssemblyFailed))
	f.repo.On("MarkFailed", mock.Anything, job.ID, service.GenericFailureMessage).Return(nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_UploadFailureStillCleansUp(t *testing.T) {
	f := newJobFixture()
	job := testJob(2)

	handle := new(mocks.MockConversionHandle)
	handle.On("Result").Return(domain.ConversionResult{AudioFilePath: writeAudio(t)})
	handle.On("Cleanup").Return(nil).Once()
	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(handle, nil)
	f.repo.On("GetByID", mock.Anything, job.ID).Return(job, nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("s3 upload: denied"))
	f.repo.On("MarkFailed", mock.Anything, job.ID, service.GenericFailureMessage).Return(nil).Once()
	f.repo.On("ScheduleRetry", mock.Anything, job.ID, service.GenericFailureMessage, mock.Anything).Return(nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	handle.AssertExpectations(t)
	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_CancelledDuringConversionDiscardsAudio(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)
	cancelled := *job
	cancelled.Status = domain.JobStatusCancelled

	handle := new(mocks.MockConversionHandle)
	handle.On("Result").Return(domain.ConversionResult{AudioFilePath: writeAudio(t), EstimatedCost: decimal.NewFromInt(1)})
	handle.On("Cleanup").Return(nil).Once()
	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(handle, nil)
	f.repo.On("GetByID", mock.Anything, job.ID).Return(&cancelled, nil).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	handle.AssertExpectations(t)
	f.repo.AssertExpectations(t)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Deduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessJob_CompletesWhenReloadAndPresignFail(t *testing.T) {
	f := newJobFixture()
	job := testJob(1)

	handle := new(mocks.MockConversionHandle)
	handle.On("Result").Return(domain.ConversionResult{AudioFilePath: writeAudio(t)})
	handle.On("Cleanup").Return(nil)
	f.repo.On("MarkProcessing", mock.Anything, job.ID).Return(nil)
	f.storage.On("Download", mock.Anything, mock.Anything, mock.Anything).Return([]byte("%PDF"), nil)
	f.converter.On("Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(handle, nil)
	f.repo.On("GetByID", mock.Anything, job.ID).Return(nil, errors.New("connection reset")).Once()
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{Location: "https://s3/audio.mp3"}, nil).Once()
	f.repo.On("MarkCompleted", mock.Anything, job.ID, mock.Anything).Return(nil).Once()
	f.storage.On("GetPresignedURL", mock.Anything, "audiobooks", job.AudioObjectKey(), int64(900)).
		Return("", errors.New("signing: no credentials")).Once()

	f.svc.ProcessJob(context.Background(), job, 3)

	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e port.ProgressEvent) bool {
		return e.Status == domain.JobStatusCompleted && e.AudioURL == ""
	}))
}
