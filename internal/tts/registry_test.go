package tts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/silent"
	"github.com/jpotterlabs/pdf2audiobook-base/mocks"
)

func TestRegistry_ConstructsOnceAndCaches(t *testing.T) {
	r := tts.NewRegistry(false)
	calls := 0
	r.Register(domain.ProviderOpenAI, func(context.Context) (port.SpeechSynthesizer, error) {
		calls++
		return new(mocks.MockSpeechSynthesizer), nil
	})

	first, err := r.Get(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)
	second, err := r.Get(context.Background(), domain.ProviderOpenAI)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRegistry_ConstructionErrorIsTerminalAndNotCached(t *testing.T) {
	r := tts.NewRegistry(false)
	calls := 0
	r.Register(domain.ProviderAzure, func(context.Context) (port.SpeechSynthesizer, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("no key")
		}
		return new(mocks.MockSpeechSynthesizer), nil
	})

	_, err := r.Get(context.Background(), domain.ProviderAzure)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTTSNotConfigured)
	assert.True(t, domain.IsUserError(err))

	_, err = r.Get(context.Background(), domain.ProviderAzure)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRegistry_UnsupportedProvider(t *testing.T) {
	r := tts.NewRegistry(false)

	_, err := r.Get(context.Background(), domain.VoiceProvider("espeak"))

	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)
	assert.True(t, domain.IsUserError(err))
}

func TestRegistry_TestingModeForcesMock(t *testing.T) {
	r := tts.NewRegistryFromConfig(&config.TTSConfig{TestingMode: true})

	synth, err := r.Get(context.Background(), domain.ProviderElevenLabs)

	require.NoError(t, err)
	assert.IsType(t, &silent.Synthesizer{}, synth)
	assert.Equal(t, domain.ProviderMock, r.Resolve(domain.ProviderElevenLabs))
}

func TestRegistryFromConfig_MissingCredentialsSurfaceAtFirstUse(t *testing.T) {
	r := tts.NewRegistryFromConfig(&config.TTSConfig{})

	_, err := r.Get(context.Background(), domain.ProviderOpenAI)

	assert.ErrorIs(t, err, domain.ErrTTSNotConfigured)
}
