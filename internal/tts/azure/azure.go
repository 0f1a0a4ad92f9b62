// Package azure synthesizes speech with the Azure Cognitive Services Speech
// REST API.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const (
	defaultVoice = "en-US-JennyNeural"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	userAgent    = "pdf2audiobook"
)

var voiceMapping = map[string]string{
	"default":       "en-US-JennyNeural",
	"female":        "en-US-JennyNeural",
	"male":          "en-US-GuyNeural",
	"us_female_std": "en-US-JennyNeural",
	"us_male_std":   "en-US-GuyNeural",
	"gb_female_std": "en-GB-SoniaNeural",
	"gb_male_std":   "en-GB-RyanNeural",
}

var neuralVoiceRe = regexp.MustCompile(`^([a-z]{2,3}-[A-Z]{2})-[A-Za-z]+Neural$`)

// Synthesizer implements port.SpeechSynthesizer for Azure Speech.
type Synthesizer struct {
	key      string
	endpoint string
	client   *http.Client
}

// NewSynthesizer creates an Azure synthesizer. Key and region are required
// unless a full endpoint is configured.
func NewSynthesizer(cfg *config.AzureTTSConfig, timeout time.Duration) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, fmt.Errorf("%w: azure speech key missing", domain.ErrTTSNotConfigured)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: azure speech region missing", domain.ErrTTSNotConfigured)
		}
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	return NewSynthesizerWithEndpoint(cfg.Key, endpoint, timeout), nil
}

// NewSynthesizerWithEndpoint creates a synthesizer pointing at a custom endpoint (for testing).
func NewSynthesizerWithEndpoint(key, endpoint string, timeout time.Duration) *Synthesizer {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Synthesizer{key: key, endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// ResolveVoice maps a selector to an Azure neural voice name.
func ResolveVoice(selector string) (name, lang string) {
	trimmed := strings.TrimSpace(selector)
	name = defaultVoice
	if v, ok := voiceMapping[strings.ToLower(trimmed)]; ok {
		name = v
	} else if neuralVoiceRe.MatchString(trimmed) {
		name = trimmed
	}
	return name, neuralVoiceRe.FindStringSubmatch(name)[1]
}

// BuildSSML renders the request document; speed becomes a relative prosody rate.
func BuildSSML(text, voice string, speed float64) string {
	name, lang := ResolveVoice(voice)
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s"><prosody rate="%.2f">%s</prosody></voice></speak>`,
		lang, name, speed, html.EscapeString(text),
	)
}

// Synthesize returns MP3 audio for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	body := BuildSSML(text, voice, speed)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling azure speech API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure speech API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("azure speech returned empty audio")
	}
	return respBody, nil
}
