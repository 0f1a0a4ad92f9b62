package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

// MockJobService is a mock implementation of service.JobService.
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) ProcessJob(ctx context.Context, job *domain.Job, maxAttempts int) {
	m.Called(ctx, job, maxAttempts)
}
