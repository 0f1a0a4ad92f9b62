package transform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/transform"
)

func TestChatClient_Complete_Success(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  A summary.  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 80, "completion_tokens": 20, "total_tokens": 100}
		}`))
	}))
	defer server.Close()

	client := transform.NewChatClient(&config.LLMProviderConfig{
		Provider: "openrouter",
		APIKey:   "or-key",
		BaseURL:  server.URL,
	}, "test-model")

	resp, err := client.Complete(context.Background(), port.CompletionRequest{
		SystemPrompt: "Summarize.",
		UserContent:  "Body text.",
		MaxTokens:    1000,
		Temperature:  0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, "A summary.", resp.Content)
	assert.Equal(t, 100, resp.TotalTokens)
	assert.Equal(t, "test-model", gotBody["model"])
	assert.EqualValues(t, 1000, gotBody["max_tokens"])
	messages := gotBody["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "Body text.", messages[1].(map[string]interface{})["content"])
}

func TestChatClient_Complete_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := transform.NewChatClient(&config.LLMProviderConfig{Provider: "openrouter", APIKey: "k", BaseURL: server.URL}, "m")

	_, err := client.Complete(context.Background(), port.CompletionRequest{UserContent: "x"})

	require.Error(t, err)
	assert.True(t, transform.IsRateLimit(err))
}

func TestChatClient_Complete_RateLimitCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := transform.NewChatClient(&config.LLMProviderConfig{Provider: "openrouter", APIKey: "k", BaseURL: server.URL}, "m")

	_, err := client.Complete(context.Background(), port.CompletionRequest{UserContent: "x"})

	var rlErr *transform.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 7*time.Second, rlErr.RetryAfter)
}

func TestChatClient_Complete_ServerErrorIsNotRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := transform.NewChatClient(&config.LLMProviderConfig{Provider: "openai", APIKey: "k", BaseURL: server.URL}, "m")

	_, err := client.Complete(context.Background(), port.CompletionRequest{UserContent: "x"})

	require.Error(t, err)
	assert.False(t, transform.IsRateLimit(err))
}

func TestNewClientFromConfig_NoCredentials(t *testing.T) {
	_, _, err := transform.NewClientFromConfig(&config.LLMConfig{})

	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestNewClientFromConfig_PrefersGateway(t *testing.T) {
	cfg := &config.LLMConfig{
		Gateway: config.LLMProviderConfig{Provider: "openrouter", APIKey: "or-key"},
		Direct:  config.LLMProviderConfig{Provider: "openai", APIKey: "sk-key"},
	}

	client, active, err := transform.NewClientFromConfig(cfg)

	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "openrouter", active.Provider)
}

func TestRateLimitError_Unwrap(t *testing.T) {
	inner := assert.AnError
	err := transform.NewRateLimitError("openai", inner, 7)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "retry after 7s")
	assert.Equal(t, 12, transform.ParseRetryAfterHeader("12"))
	assert.Equal(t, 0, transform.ParseRetryAfterHeader("soon"))
}
