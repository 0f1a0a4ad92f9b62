// Package google synthesizes speech with the Google Cloud Text-to-Speech
// REST API.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const (
	apiURL       = "https://texttospeech.googleapis.com/v1/text:synthesize"
	cloudScope   = "https://www.googleapis.com/auth/cloud-platform"
	defaultVoice = "en-US-Neural2-D"
)

var voiceNameRe = regexp.MustCompile(`^([a-z]{2,3}-[A-Z]{2})-[A-Za-z0-9]+(-[A-Za-z0-9]+)*$`)

// Synthesizer implements port.SpeechSynthesizer for Google Cloud TTS.
type Synthesizer struct {
	endpoint string
	voices   map[string]string
	client   *http.Client
}

// NewSynthesizer creates a Google synthesizer authenticated with inline JSON
// credentials when present, else Application Default Credentials.
func NewSynthesizer(ctx context.Context, cfg *config.GoogleTTSConfig, timeout time.Duration) (*Synthesizer, error) {
	var (
		client *http.Client
		err    error
	)
	if raw := strings.TrimSpace(cfg.CredentialsJSON); strings.HasPrefix(raw, "{") {
		creds, credErr := googleauth.CredentialsFromJSON(ctx, []byte(raw), cloudScope)
		if credErr != nil {
			return nil, fmt.Errorf("%w: google credentials: %v", domain.ErrTTSNotConfigured, credErr)
		}
		client = oauth2.NewClient(ctx, creds.TokenSource)
	} else {
		client, err = googleauth.DefaultClient(ctx, cloudScope)
		if err != nil {
			return nil, fmt.Errorf("%w: google default credentials: %v", domain.ErrTTSNotConfigured, err)
		}
	}
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	client.Timeout = timeout

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	return NewSynthesizerWithClient(cfg.Voices, client, endpoint), nil
}

// NewSynthesizerWithClient creates a synthesizer using a caller-supplied HTTP
// client and endpoint (for testing).
func NewSynthesizerWithClient(voices map[string]string, client *http.Client, endpoint string) *Synthesizer {
	return &Synthesizer{endpoint: endpoint, voices: voices, client: client}
}

// ResolveVoice maps a selector to a voice name and its language code.
// Semantic keys come from the configured table, full voice names pass
// through, anything else gets the default voice.
func (s *Synthesizer) ResolveVoice(selector string) (name, languageCode string) {
	name = defaultVoice
	key := strings.ToLower(strings.TrimSpace(selector))
	if mapped, ok := s.voices[key]; ok && mapped != "" {
		name = mapped
	} else if voiceNameRe.MatchString(strings.TrimSpace(selector)) {
		name = strings.TrimSpace(selector)
	}
	m := voiceNameRe.FindStringSubmatch(name)
	if m == nil {
		return name, "en-US"
	}
	return name, m[1]
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns MP3 audio for text, applying speed as speakingRate.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	var reqBody synthesizeRequest
	reqBody.Input.Text = text
	reqBody.Voice.Name, reqBody.Voice.LanguageCode = s.ResolveVoice(voice)
	reqBody.AudioConfig.AudioEncoding = "MP3"
	reqBody.AudioConfig.SpeakingRate = speed

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling google tts API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tts API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out synthesizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, errors.New("google tts returned empty audio")
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decoding audio content: %w", err)
	}
	return audio, nil
}
