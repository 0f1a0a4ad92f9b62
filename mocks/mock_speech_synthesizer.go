package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSpeechSynthesizer is a mock implementation of port.SpeechSynthesizer.
type MockSpeechSynthesizer struct {
	mock.Mock
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	args := m.Called(ctx, text, voice, speed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
