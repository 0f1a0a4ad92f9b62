// Package elevenlabs synthesizes speech with the ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const (
	apiBase      = "https://api.elevenlabs.io"
	defaultModel = "eleven_multilingual_v2"
	// Rachel.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

var voiceMapping = map[string]string{
	"default":       defaultVoiceID,
	"rachel":        defaultVoiceID,
	"female":        defaultVoiceID,
	"us_female_std": defaultVoiceID,
	"adam":          "pNInz6obpgDQGcFmaJgB",
	"male":          "pNInz6obpgDQGcFmaJgB",
	"us_male_std":   "pNInz6obpgDQGcFmaJgB",
}

var voiceIDRe = regexp.MustCompile(`^[A-Za-z0-9]{20}$`)

// Synthesizer implements port.SpeechSynthesizer for ElevenLabs.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewSynthesizer creates an ElevenLabs synthesizer. It fails when no API key is set.
func NewSynthesizer(cfg *config.ElevenLabsTTSConfig, timeout time.Duration) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: elevenlabs api key missing", domain.ErrTTSNotConfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = apiBase
	}
	return NewSynthesizerWithEndpoint(cfg.APIKey, base, cfg.Model, timeout), nil
}

// NewSynthesizerWithEndpoint creates a synthesizer pointing at a custom base URL (for testing).
func NewSynthesizerWithEndpoint(apiKey, baseURL, model string, timeout time.Duration) *Synthesizer {
	if model == "" {
		model = defaultModel
	}
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Synthesizer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// ResolveVoice maps a selector to an ElevenLabs voice id. Raw voice ids pass
// through; unknown selectors get Rachel.
func ResolveVoice(selector string) string {
	trimmed := strings.TrimSpace(selector)
	if v, ok := voiceMapping[strings.ToLower(trimmed)]; ok {
		return v
	}
	if voiceIDRe.MatchString(trimmed) {
		return trimmed
	}
	return defaultVoiceID
}

// Synthesize returns MP3 audio for text. Speed is not applied: ElevenLabs
// pacing is a property of the studio voice.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, _ float64) ([]byte, error) {
	bodyBytes, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, ResolveVoice(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling elevenlabs API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}
	return respBody, nil
}
