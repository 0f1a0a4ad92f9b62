// Package pipeline runs one PDF-to-audio conversion from raw document bytes to
// a final MP3 on disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/textproc"
)

// Progress milestones.
const (
	progressExtracting   = 5
	progressNormalizing  = 15
	progressTransforming = 25
	progressChunking     = 35
	progressSynthStart   = 40
	progressSynthSpan    = 55
	progressAssembling   = 95
	progressDone         = 100
)

const inputFileName = "input.pdf"

// Extractor turns a PDF on disk into raw text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Transformer rewrites text for a conversion mode.
type Transformer interface {
	Transform(ctx context.Context, text string, mode domain.ConversionMode, includeSummary bool) (domain.TransformedText, error)
}

// SynthesizerSource resolves a provider id to a synthesizer. Resolve names the
// provider a request for id is actually served by.
type SynthesizerSource interface {
	Get(ctx context.Context, id domain.VoiceProvider) (port.SpeechSynthesizer, error)
	Resolve(id domain.VoiceProvider) domain.VoiceProvider
}

// Assembler joins ordered chunk files into one audio file inside workDir.
type Assembler interface {
	Assemble(ctx context.Context, chunks []domain.AudioChunk, workDir string) (string, error)
}

// CostEstimator prices a run.
type CostEstimator interface {
	EstimateCharacters(provider domain.VoiceProvider, voice string, chars, tokensUsed int) decimal.Decimal
}

// Config holds orchestrator settings.
type Config struct {
	MaxChunkChars        int
	SynthesisConcurrency int
	// WorkRoot is the parent of per-job working directories.
	WorkRoot string
}

// Orchestrator implements port.DocumentConverter.
type Orchestrator struct {
	extractor    Extractor
	transformer  Transformer
	synthesizers SynthesizerSource
	assembler    Assembler
	estimator    CostEstimator
	cfg          Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	extractor Extractor,
	transformer Transformer,
	synthesizers SynthesizerSource,
	assembler Assembler,
	estimator CostEstimator,
	cfg Config,
) *Orchestrator {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = textproc.DefaultMaxChunkChars
	}
	if cfg.SynthesisConcurrency < 1 {
		cfg.SynthesisConcurrency = 1
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	return &Orchestrator{
		extractor:    extractor,
		transformer:  transformer,
		synthesizers: synthesizers,
		assembler:    assembler,
		estimator:    estimator,
		cfg:          cfg,
	}
}

// conversion is a finished run whose working directory is still on disk.
type conversion struct {
	result  domain.ConversionResult
	workDir string
	once    sync.Once
	err     error
}

func (c *conversion) Result() domain.ConversionResult {
	return c.result
}

// Cleanup removes the working directory, including the final audio file.
// Calling it more than once is safe.
func (c *conversion) Cleanup() error {
	c.once.Do(func() {
		c.err = os.RemoveAll(c.workDir)
	})
	return c.err
}

// Convert runs the pipeline. On success the returned handle owns the working
// directory and the caller must call Cleanup once the audio is persisted. On
// failure the directory has already been removed.
func (o *Orchestrator) Convert(ctx context.Context, document []byte, params domain.ConversionParams, onProgress domain.ProgressFunc) (port.ConversionHandle, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if len(document) == 0 {
		return nil, domain.UserError("extract", domain.ErrEmptyDocument)
	}

	report := monotonic(onProgress)

	workDir := filepath.Join(o.cfg.WorkRoot, "pdf2audio-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, domain.SystemError("setup", fmt.Errorf("creating work dir: %w", err))
	}

	handle := &conversion{workDir: workDir}
	succeeded := false
	defer func() {
		if succeeded {
			return
		}
		if err := handle.Cleanup(); err != nil {
			log.Warn().Err(err).Str("work_dir", workDir).Msg("pipeline.Convert: failed to remove work dir")
		}
	}()

	result, err := o.run(ctx, document, params, workDir, report)
	if err != nil {
		return nil, err
	}

	handle.result = result
	succeeded = true
	return handle, nil
}

func (o *Orchestrator) run(ctx context.Context, document []byte, params domain.ConversionParams, workDir string, report domain.ProgressFunc) (domain.ConversionResult, error) {
	var result domain.ConversionResult

	pdfPath := filepath.Join(workDir, inputFileName)
	if err := os.WriteFile(pdfPath, document, 0o600); err != nil {
		return result, domain.SystemError("setup", fmt.Errorf("writing input PDF: %w", err))
	}

	report(progressExtracting)
	raw, err := o.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return result, classify("extract", err)
	}

	report(progressNormalizing)
	text := textproc.Normalize(raw)
	if text == "" {
		return result, domain.UserError("normalize", domain.ErrEmptyDocument)
	}

	if params.Mode.NeedsLLM(params.IncludeSummary) {
		report(progressTransforming)
	}
	transformed, err := o.transformer.Transform(ctx, text, params.Mode, params.IncludeSummary)
	if err != nil {
		return result, classify("transform", err)
	}
	result.Usage.AddTokens(transformed.TokensUsed)

	report(progressChunking)
	chunks := textproc.Chunk(transformed.Text, o.cfg.MaxChunkChars)
	if len(chunks) == 0 {
		return result, domain.UserError("chunk", domain.ErrEmptyDocument)
	}

	synth, err := o.synthesizers.Get(ctx, params.VoiceProvider)
	if err != nil {
		return result, classify("synthesize", err)
	}

	report(progressSynthStart)
	audioChunks, err := o.synthesize(ctx, synth, chunks, params, workDir, report)
	if err != nil {
		return result, err
	}
	result.Usage.AddCharacters(utf8.RuneCountInString(transformed.Text))

	report(progressAssembling)
	finalPath, err := o.assembler.Assemble(ctx, audioChunks, workDir)
	if err != nil {
		return result, classify("assemble", err)
	}
	result.AudioFilePath = finalPath

	served := o.synthesizers.Resolve(params.VoiceProvider)
	result.EstimatedCost = o.estimator.EstimateCharacters(
		served, params.VoiceType,
		result.Usage.CharactersSynthesized, result.Usage.LLMTokensUsed,
	)

	log.Info().
		Str("provider", string(params.VoiceProvider)).
		Str("served_by", string(served)).
		Str("mode", string(params.Mode)).
		Int("chunks", len(chunks)).
		Int("chars", result.Usage.CharactersSynthesized).
		Int("tokens", result.Usage.LLMTokensUsed).
		Str("estimated_cost", result.EstimatedCost.String()).
		Msg("pipeline.Convert: conversion finished")

	report(progressDone)
	return result, nil
}

// synthesize renders every chunk to its own file. Chunks may be rendered in
// parallel, but the returned slice is always in chunk order.
func (o *Orchestrator) synthesize(
	ctx context.Context,
	synth port.SpeechSynthesizer,
	chunks []domain.TextChunk,
	params domain.ConversionParams,
	workDir string,
	report domain.ProgressFunc,
) ([]domain.AudioChunk, error) {
	out := make([]domain.AudioChunk, len(chunks))
	total := len(chunks)

	var (
		mu   sync.Mutex
		done int
	)
	advance := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		report(progressSynthStart + int(float64(done)/float64(total)*progressSynthSpan))
	}

	render := func(ctx context.Context, i int) error {
		chunk := chunks[i]
		audio, err := synth.Synthesize(ctx, chunk.Text, params.VoiceType, params.ReadingSpeed)
		if err != nil {
			if domain.IsUserError(err) {
				return domain.UserError("synthesize", err)
			}
			return domain.SystemError("synthesize", fmt.Errorf("%w: chunk %d: %v", domain.ErrSynthesisFailed, chunk.Index, err))
		}
		if len(audio) == 0 {
			return domain.SystemError("synthesize", fmt.Errorf("%w: chunk %d: empty audio", domain.ErrSynthesisFailed, chunk.Index))
		}

		path := filepath.Join(workDir, fmt.Sprintf("chunk_%04d.mp3", chunk.Index))
		if err := os.WriteFile(path, audio, 0o600); err != nil {
			return domain.SystemError("synthesize", fmt.Errorf("writing chunk %d: %w", chunk.Index, err))
		}
		out[i] = domain.AudioChunk{Index: chunk.Index, Path: path}

		log.Debug().Int("chunk", chunk.Index).Int("total", total).Int("bytes", len(audio)).Msg("pipeline.synthesize: chunk done")
		advance()
		return nil
	}

	if o.cfg.SynthesisConcurrency == 1 || total == 1 {
		for i := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, domain.SystemError("synthesize", err)
			}
			if err := render(ctx, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.SynthesisConcurrency)
	for i := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return domain.SystemError("synthesize", err)
			}
			return render(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateParams rejects job options no provider can honor.
func ValidateParams(params domain.ConversionParams) error {
	if !params.Mode.Valid() {
		return domain.UserError("validate", fmt.Errorf("%w: conversion mode %q", domain.ErrInvalidJobParams, params.Mode))
	}
	if params.ReadingSpeed < domain.MinReadingSpeed || params.ReadingSpeed > domain.MaxReadingSpeed {
		return domain.UserError("validate", fmt.Errorf("%w: reading speed %.2f outside %.1f-%.1f",
			domain.ErrInvalidJobParams, params.ReadingSpeed, domain.MinReadingSpeed, domain.MaxReadingSpeed))
	}
	if params.VoiceProvider == "" {
		return domain.UserError("validate", fmt.Errorf("%w: voice provider missing", domain.ErrInvalidJobParams))
	}
	return nil
}

// classify keeps an existing classification and treats anything else as a
// system failure of stage.
func classify(stage string, err error) error {
	var convErr *domain.ConversionError
	if errors.As(err, &convErr) {
		return err
	}
	if domain.IsUserError(err) {
		return domain.UserError(stage, err)
	}
	return domain.SystemError(stage, err)
}

// monotonic drops any value lower than one already reported.
func monotonic(fn domain.ProgressFunc) domain.ProgressFunc {
	if fn == nil {
		return func(int) {}
	}
	last := -1
	return func(p int) {
		if p < last {
			return
		}
		last = p
		fn(p)
	}
}
