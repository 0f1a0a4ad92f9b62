package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

// ChatClient implements port.LLMClient against any OpenAI-compatible
// chat-completion endpoint.
type ChatClient struct {
	provider string
	model    string
	client   *openai.Client
}

// NewChatClient creates a client from a provider config. defaultModel is used
// when a request does not name one.
func NewChatClient(cfg *config.LLMProviderConfig, defaultModel string) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &retryAfterTransport{base: http.DefaultTransport},
	}

	return &ChatClient{
		provider: cfg.Provider,
		model:    defaultModel,
		client:   openai.NewClientWithConfig(clientCfg),
	}
}

// NewClientFromConfig selects the gateway provider when it has a key, else
// the direct provider. With neither configured it returns
// domain.ErrMissingCredentials.
func NewClientFromConfig(cfg *config.LLMConfig) (*ChatClient, *config.LLMProviderConfig, error) {
	active := cfg.ActiveProvider()
	if active == nil {
		return nil, nil, domain.ErrMissingCredentials
	}
	return NewChatClient(active, active.SummaryModel), active, nil
}

// Complete sends a single system+user exchange and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	retryAfter := new(int)
	resp, err := c.client.CreateChatCompletion(withRetryAfterSink(ctx, retryAfter), openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserContent},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, c.classify(err, *retryAfter)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s: no choices", c.provider)
	}

	return &port.CompletionResponse{
		Content:     strings.TrimSpace(resp.Choices[0].Message.Content),
		TotalTokens: resp.Usage.TotalTokens,
		Model:       model,
	}, nil
}

func (c *ChatClient) classify(err error, retryAfterSecs int) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	baseErr := fmt.Errorf("%s API error: %w", c.provider, err)
	if status == http.StatusTooManyRequests {
		return NewRateLimitError(c.provider, baseErr, retryAfterSecs)
	}
	return baseErr
}

type retryAfterKey struct{}

// withRetryAfterSink makes the transport store the Retry-After seconds of a
// 429 response for requests made with the returned context.
func withRetryAfterSink(ctx context.Context, secs *int) context.Context {
	return context.WithValue(ctx, retryAfterKey{}, secs)
}

// retryAfterTransport records the Retry-After hint of rate-limited responses,
// which go-openai drops from its APIError.
type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if sink, ok := req.Context().Value(retryAfterKey{}).(*int); ok {
		*sink = ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
	}
	return resp, nil
}
