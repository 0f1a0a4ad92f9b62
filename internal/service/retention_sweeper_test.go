package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/service"
	"github.com/jpotterlabs/pdf2audiobook-base/mocks"
)

func completedJob(pdfKey, audioKey string) domain.Job {
	j := domain.Job{ID: uuid.New(), Status: domain.JobStatusCompleted, PDFKey: pdfKey}
	if audioKey != "" {
		j.AudioKey = &audioKey
	}
	return j
}

func TestRetentionSweeper_DeletesFilesThenRows(t *testing.T) {
	jobRepo := new(mocks.MockJobRepo)
	storage := new(mocks.MockObjectStorage)
	a := completedJob("pdfs/a.pdf", "audio/u/a.mp3")
	b := completedJob("pdfs/b.pdf", "")

	start := time.Now()
	jobRepo.On("ListCompletedBefore", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(start.Add(-29*24*time.Hour)) && cutoff.After(start.Add(-31*24*time.Hour))
	}), 10).Return([]domain.Job{a, b}, nil).Once()
	storage.On("Delete", mock.Anything, "audiobooks", "pdfs/a.pdf").Return(nil).Once()
	storage.On("Delete", mock.Anything, "audiobooks", "audio/u/a.mp3").Return(nil).Once()
	storage.On("Delete", mock.Anything, "audiobooks", "pdfs/b.pdf").Return(nil).Once()
	jobRepo.On("Delete", mock.Anything, a.ID).Return(nil).Once()
	jobRepo.On("Delete", mock.Anything, b.ID).Return(nil).Once()

	sweeper := service.NewRetentionSweeper(jobRepo, storage, service.RetentionConfig{
		Bucket:    "audiobooks",
		MaxAge:    30 * 24 * time.Hour,
		BatchSize: 10,
	})

	removed, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	jobRepo.AssertExpectations(t)
	storage.AssertExpectations(t)
}

func TestRetentionSweeper_StorageFailureKeepsRow(t *testing.T) {
	jobRepo := new(mocks.MockJobRepo)
	storage := new(mocks.MockObjectStorage)
	a := completedJob("pdfs/a.pdf", "")
	b := completedJob("pdfs/b.pdf", "")

	jobRepo.On("ListCompletedBefore", mock.Anything, mock.Anything, 2).Return([]domain.Job{a, b}, nil).Once()
	jobRepo.On("ListCompletedBefore", mock.Anything, mock.Anything, 2).Return([]domain.Job{a}, nil).Once()
	storage.On("Delete", mock.Anything, "bkt", "pdfs/a.pdf").Return(errors.New("access denied"))
	storage.On("Delete", mock.Anything, "bkt", "pdfs/b.pdf").Return(nil).Once()
	jobRepo.On("Delete", mock.Anything, b.ID).Return(nil).Once()

	sweeper := service.NewRetentionSweeper(jobRepo, storage, service.RetentionConfig{Bucket: "bkt", BatchSize: 2})

	removed, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	jobRepo.AssertNotCalled(t, "Delete", mock.Anything, a.ID)
}

func TestRetentionSweeper_ListError(t *testing.T) {
	jobRepo := new(mocks.MockJobRepo)
	jobRepo.On("ListCompletedBefore", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	sweeper := service.NewRetentionSweeper(jobRepo, new(mocks.MockObjectStorage), service.RetentionConfig{})

	_, err := sweeper.Sweep(context.Background())

	assert.Error(t, err)
}
