// Package tts selects and caches text-to-speech providers.
package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/azure"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/elevenlabs"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/google"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/openai"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/polly"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/silent"
)

// ProviderFactory constructs a synthesizer on first use.
type ProviderFactory func(ctx context.Context) (port.SpeechSynthesizer, error)

// Registry maps provider ids to lazily constructed, cached synthesizers.
// Construction errors are returned to the caller and not cached, so a later
// call retries construction.
type Registry struct {
	mu          sync.Mutex
	factories   map[domain.VoiceProvider]ProviderFactory
	instances   map[domain.VoiceProvider]port.SpeechSynthesizer
	testingMode bool
}

// NewRegistry creates an empty registry. With testingMode set every lookup
// resolves to the silent stub provider.
func NewRegistry(testingMode bool) *Registry {
	r := &Registry{
		factories:   map[domain.VoiceProvider]ProviderFactory{},
		instances:   map[domain.VoiceProvider]port.SpeechSynthesizer{},
		testingMode: testingMode,
	}
	r.Register(domain.ProviderMock, func(context.Context) (port.SpeechSynthesizer, error) {
		return silent.New(), nil
	})
	return r
}

// NewRegistryFromConfig registers every built-in provider.
func NewRegistryFromConfig(cfg *config.TTSConfig) *Registry {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	r := NewRegistry(cfg.TestingMode)

	r.Register(domain.ProviderOpenAI, func(context.Context) (port.SpeechSynthesizer, error) {
		s, err := openai.NewSynthesizer(&cfg.OpenAI, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(domain.ProviderGoogle, func(ctx context.Context) (port.SpeechSynthesizer, error) {
		s, err := google.NewSynthesizer(ctx, &cfg.Google, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(domain.ProviderAWSPolly, func(ctx context.Context) (port.SpeechSynthesizer, error) {
		s, err := polly.NewSynthesizer(ctx, &cfg.Polly)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(domain.ProviderAzure, func(context.Context) (port.SpeechSynthesizer, error) {
		s, err := azure.NewSynthesizer(&cfg.Azure, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	r.Register(domain.ProviderElevenLabs, func(context.Context) (port.SpeechSynthesizer, error) {
		s, err := elevenlabs.NewSynthesizer(&cfg.ElevenLabs, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	return r
}

// Register installs or replaces the factory for id and drops any cached instance.
func (r *Registry) Register(id domain.VoiceProvider, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	delete(r.instances, id)
}

// Resolve returns the provider id a request for id is served by.
func (r *Registry) Resolve(id domain.VoiceProvider) domain.VoiceProvider {
	if r.testingMode {
		return domain.ProviderMock
	}
	return id
}

// Get returns the synthesizer for id, constructing it on first use.
// Unknown ids and construction failures are terminal errors.
func (r *Registry) Get(ctx context.Context, id domain.VoiceProvider) (port.SpeechSynthesizer, error) {
	id = r.Resolve(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[id]; ok {
		return inst, nil
	}

	factory, ok := r.factories[id]
	if !ok {
		return nil, domain.UserError("synthesize", fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, id))
	}

	inst, err := factory(ctx)
	if err != nil {
		log.Error().Err(err).Str("provider", string(id)).Msg("tts.Registry.Get: provider construction failed")
		return nil, domain.UserError("synthesize", fmt.Errorf("%w: %s: %v", domain.ErrTTSNotConfigured, id, err))
	}

	log.Info().Str("provider", string(id)).Msg("tts.Registry.Get: provider initialized")
	r.instances[id] = inst
	return inst, nil
}
