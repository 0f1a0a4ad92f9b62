// Package transform rewrites normalized document text with an LLM according
// to the job's conversion mode.
package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

const (
	defaultMaxInputChars = 100000
	defaultMaxAttempts   = 5
	maxBackoff           = 60 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Transformer produces the final narration text for a conversion mode.
type Transformer struct {
	client           port.LLMClient
	summaryModel     string
	explanationModel string
	maxInputChars    int
	maxAttempts      int
	sleep            SleepFunc
	jitter           func() time.Duration
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithModels sets the models used for summaries and explanations.
func WithModels(summary, explanation string) Option {
	return func(t *Transformer) {
		t.summaryModel = summary
		t.explanationModel = explanation
	}
}

// WithMaxInputChars sets the ceiling input text is truncated to.
func WithMaxInputChars(n int) Option {
	return func(t *Transformer) { t.maxInputChars = n }
}

// WithMaxAttempts sets how many times a rate-limited call is attempted.
func WithMaxAttempts(n int) Option {
	return func(t *Transformer) { t.maxAttempts = n }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(t *Transformer) { t.sleep = fn }
}

// WithJitter replaces the random component added to each backoff.
func WithJitter(fn func() time.Duration) Option {
	return func(t *Transformer) { t.jitter = fn }
}

// NewTransformer creates a Transformer. A nil client is allowed; modes that
// need an LLM then fail with domain.ErrMissingCredentials.
func NewTransformer(client port.LLMClient, opts ...Option) *Transformer {
	t := &Transformer{
		client:        client,
		maxInputChars: defaultMaxInputChars,
		maxAttempts:   defaultMaxAttempts,
		sleep:         sleepContext,
		jitter:        func() time.Duration { return time.Duration(rand.Int64N(int64(time.Second))) },
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxAttempts < 1 {
		t.maxAttempts = 1
	}
	return t
}

// NewTransformerFromConfig builds a Transformer over the provider selected by
// precedence. Missing credentials are not an error here; they surface when a
// mode first needs the LLM.
func NewTransformerFromConfig(cfg *config.LLMConfig) *Transformer {
	opts := []Option{
		WithMaxInputChars(cfg.MaxInputChars),
		WithMaxAttempts(cfg.MaxAttempts),
	}

	client, active, err := NewClientFromConfig(cfg)
	if err != nil {
		log.Warn().Msg("transform.NewTransformerFromConfig: no LLM provider configured")
		return NewTransformer(nil, opts...)
	}

	log.Info().Str("provider", active.Provider).Msg("transform.NewTransformerFromConfig: LLM provider selected")
	opts = append(opts, WithModels(active.SummaryModel, active.ExplanationModel))
	return NewTransformer(client, opts...)
}

// Transform returns the text to narrate for mode.
//
// Input sent to the LLM is silently truncated to the configured ceiling. A
// rate-limited call is retried with exponential backoff; any other LLM error
// degrades to a truncation-based fallback text. Only missing credentials and
// cancellation are returned as errors.
func (t *Transformer) Transform(ctx context.Context, text string, mode domain.ConversionMode, includeSummary bool) (domain.TransformedText, error) {
	result := domain.TransformedText{Text: text, Mode: mode}

	if !mode.Valid() {
		return result, domain.UserError("transform", fmt.Errorf("%w: conversion mode %q", domain.ErrInvalidJobParams, mode))
	}
	if !mode.NeedsLLM(includeSummary) {
		return result, nil
	}
	if t.client == nil {
		return result, domain.UserError("transform", domain.ErrMissingCredentials)
	}

	input := truncateRunes(text, t.maxInputChars)
	var parts []string

	if includeSummary && (mode == domain.ModeFull || mode == domain.ModeFullExplanation) {
		summary, err := t.summarize(ctx, input, &result.TokensUsed)
		if err != nil {
			return result, err
		}
		parts = append(parts, summaryPrefix+summary)
	}

	switch mode {
	case domain.ModeFull:
		parts = append(parts, text)
	case domain.ModeSummary:
		summary, err := t.summarize(ctx, input, &result.TokensUsed)
		if err != nil {
			return result, err
		}
		parts = append(parts, summary)
	case domain.ModeExplanation, domain.ModeSummaryExplanation:
		explanation, err := t.explain(ctx, input, &result.TokensUsed)
		if err != nil {
			return result, err
		}
		parts = append(parts, explanation)
	case domain.ModeFullExplanation:
		explanation, err := t.explain(ctx, input, &result.TokensUsed)
		if err != nil {
			return result, err
		}
		parts = append(parts, explanation, text)
	}

	result.Text = strings.Join(parts, "\n\n")
	return result, nil
}

func (t *Transformer) summarize(ctx context.Context, input string, tokens *int) (string, error) {
	resp, err := t.complete(ctx, port.CompletionRequest{
		Model:        t.summaryModel,
		SystemPrompt: summarySystemPrompt,
		UserContent:  input,
		MaxTokens:    summaryMaxTokens,
		Temperature:  summaryTemperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", domain.SystemError("transform", ctxErr)
		}
		log.Warn().Err(err).Msg("transform.summarize: LLM call failed, using truncated fallback")
		return summaryFallback(input), nil
	}
	*tokens += max(resp.TotalTokens, 0)
	return resp.Content, nil
}

func (t *Transformer) explain(ctx context.Context, input string, tokens *int) (string, error) {
	resp, err := t.complete(ctx, port.CompletionRequest{
		Model:        t.explanationModel,
		SystemPrompt: explanationSystemPrompt,
		UserContent:  input,
		MaxTokens:    explanationMaxTokens,
		Temperature:  explanationTemperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", domain.SystemError("transform", ctxErr)
		}
		log.Warn().Err(err).Msg("transform.explain: LLM call failed, using truncated fallback")
		return explanationFallback(input), nil
	}
	*tokens += max(resp.TotalTokens, 0)
	return resp.Content, nil
}

// complete calls the LLM, retrying only rate-limit failures.
func (t *Transformer) complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		resp, err := t.client.Complete(ctx, req)
		if err == nil {
			if resp.Content == "" {
				return nil, errors.New("LLM returned empty content")
			}
			return resp, nil
		}

		var rlErr *RateLimitError
		if !errors.As(err, &rlErr) {
			return nil, err
		}
		lastErr = err
		if attempt == t.maxAttempts-1 {
			break
		}

		wait := t.backoff(attempt, rlErr.RetryAfter)
		log.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", t.maxAttempts).
			Dur("wait", wait).
			Msg("transform.complete: rate limited, backing off")
		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", t.maxAttempts, lastErr)
}

// backoff is 2^attempt seconds plus jitter, raised to the provider's
// Retry-After hint and capped at maxBackoff.
func (t *Transformer) backoff(attempt int, retryAfter time.Duration) time.Duration {
	wait := time.Duration(math.Pow(2, float64(attempt))*float64(time.Second)) + t.jitter()
	if retryAfter > wait {
		wait = retryAfter
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
