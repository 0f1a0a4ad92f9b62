package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts/openai"
)

func TestResolveVoice(t *testing.T) {
	assert.Equal(t, goopenai.VoiceAlloy, openai.ResolveVoice("default"))
	assert.Equal(t, goopenai.VoiceNova, openai.ResolveVoice("female"))
	assert.Equal(t, goopenai.VoiceOnyx, openai.ResolveVoice("male"))
	assert.Equal(t, goopenai.VoiceShimmer, openai.ResolveVoice("shimmer"))
	assert.Equal(t, goopenai.VoiceAlloy, openai.ResolveVoice("us_female_std"))
}

func TestNewSynthesizer_RequiresKey(t *testing.T) {
	_, err := openai.NewSynthesizer(&config.OpenAITTSConfig{}, 0)
	assert.ErrorIs(t, err, domain.ErrTTSNotConfigured)
}

func TestSynthesize_SendsVoiceAndSpeed(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	s, err := openai.NewSynthesizer(&config.OpenAITTSConfig{APIKey: "sk-test", BaseURL: server.URL}, 0)
	require.NoError(t, err)

	audio, err := s.Synthesize(context.Background(), "Hello there.", "female", 1.5)

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "tts-1", got["model"])
	assert.Equal(t, "nova", got["voice"])
	assert.Equal(t, "Hello there.", got["input"])
	assert.Equal(t, 1.5, got["speed"])
}

func TestSynthesize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid key", "type": "auth"}}`))
	}))
	defer server.Close()

	s, err := openai.NewSynthesizer(&config.OpenAITTSConfig{APIKey: "bad", BaseURL: server.URL}, 0)
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "x", "", 1)
	assert.Error(t, err)
}
