package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// MockDocumentConverter is a mock implementation of port.DocumentConverter.
type MockDocumentConverter struct {
	mock.Mock
}

func (m *MockDocumentConverter) Convert(ctx context.Context, document []byte, params domain.ConversionParams, onProgress domain.ProgressFunc) (port.ConversionHandle, error) {
	args := m.Called(ctx, document, params, onProgress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.ConversionHandle), args.Error(1)
}

// MockConversionHandle is a mock implementation of port.ConversionHandle.
type MockConversionHandle struct {
	mock.Mock
}

func (m *MockConversionHandle) Result() domain.ConversionResult {
	args := m.Called()
	return args.Get(0).(domain.ConversionResult)
}

func (m *MockConversionHandle) Cleanup() error {
	args := m.Called()
	return args.Error(0)
}
