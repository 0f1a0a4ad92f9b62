package port

import "context"

// CompletionRequest is a single-turn chat completion request.
type CompletionRequest struct {
	// Model overrides the client's default model when set.
	Model        string
	SystemPrompt string
	UserContent  string
	MaxTokens    int
	Temperature  float32
}

// CompletionResponse is the text and usage returned by an LLM.
type CompletionResponse struct {
	Content     string
	TotalTokens int
	Model       string
}

// LLMClient abstracts an OpenAI-compatible chat completion endpoint.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
