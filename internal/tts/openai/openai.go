// Package openai synthesizes speech with the OpenAI audio API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const defaultVoice = goopenai.VoiceAlloy

var voiceMapping = map[string]goopenai.SpeechVoice{
	"default": goopenai.VoiceAlloy,
	"female":  goopenai.VoiceNova,
	"male":    goopenai.VoiceOnyx,
}

var nativeVoices = map[goopenai.SpeechVoice]bool{
	goopenai.VoiceAlloy:   true,
	goopenai.VoiceEcho:    true,
	goopenai.VoiceFable:   true,
	goopenai.VoiceOnyx:    true,
	goopenai.VoiceNova:    true,
	goopenai.VoiceShimmer: true,
}

// Synthesizer implements port.SpeechSynthesizer for OpenAI TTS.
type Synthesizer struct {
	client *goopenai.Client
	model  goopenai.SpeechModel
}

// NewSynthesizer creates an OpenAI synthesizer. It fails when no API key is set.
func NewSynthesizer(cfg *config.OpenAITTSConfig, timeout time.Duration) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: openai api key missing", domain.ErrTTSNotConfigured)
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := goopenai.SpeechModel(cfg.Model)
	if model == "" {
		model = goopenai.TTSModel1
	}
	return &Synthesizer{client: goopenai.NewClientWithConfig(clientCfg), model: model}, nil
}

// ResolveVoice maps a voice selector to an OpenAI voice. Native voice names
// pass through; anything else falls back to alloy.
func ResolveVoice(selector string) goopenai.SpeechVoice {
	key := strings.ToLower(strings.TrimSpace(selector))
	if v, ok := voiceMapping[key]; ok {
		return v
	}
	if v := goopenai.SpeechVoice(key); nativeVoices[v] {
		return v
	}
	return defaultVoice
}

// Synthesize returns MP3 audio for text. Speed is passed as the API's native
// multiplier.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          ResolveVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai tts API error (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("calling openai tts API: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading openai tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai tts returned empty audio")
	}
	return audio, nil
}
