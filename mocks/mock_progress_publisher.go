package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// MockProgressPublisher is a mock implementation of port.ProgressPublisher.
type MockProgressPublisher struct {
	mock.Mock
}

func (m *MockProgressPublisher) Publish(ctx context.Context, event port.ProgressEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
