package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/audio"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/cost"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/extract"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/logger"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/pipeline"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/transform"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/tts"
)

type convertOptions struct {
	input    string
	output   string
	provider string
	voice    string
	speed    float64
	mode     string
	summary  bool
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:           "convert",
		Short:         "Convert a PDF into an MP3 audiobook",
		Long:          "Runs the conversion pipeline locally: extract, transform, synthesize and assemble.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "Path to the input PDF (required)")
	f.StringVar(&opts.output, "output", "", "Path of the MP3 to write (defaults to the input name with .mp3)")
	f.StringVar(&opts.provider, "provider", string(domain.ProviderMock), "Voice provider")
	f.StringVar(&opts.voice, "voice", "us_female_std", "Voice selector")
	f.Float64Var(&opts.speed, "speed", 1.0, "Reading speed (0.5 to 2.0)")
	f.StringVar(&opts.mode, "mode", string(domain.ModeFull), "Conversion mode")
	f.BoolVar(&opts.summary, "summary", false, "Prefix the narration with a summary")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "Overall conversion time limit")
	f.BoolVar(&opts.verbose, "verbose", false, "Log pipeline details to stderr")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func (o *convertOptions) params() domain.ConversionParams {
	return domain.ConversionParams{
		VoiceProvider:  domain.VoiceProvider(strings.TrimSpace(o.provider)),
		VoiceType:      o.voice,
		ReadingSpeed:   o.speed,
		IncludeSummary: o.summary,
		Mode:           domain.ConversionMode(strings.TrimSpace(o.mode)),
	}
}

func (o *convertOptions) outputPath() string {
	if o.output != "" {
		return o.output
	}
	return strings.TrimSuffix(o.input, filepath.Ext(o.input)) + ".mp3"
}

func runConvert(ctx context.Context, opts *convertOptions, stdout, stderr io.Writer) error {
	_ = godotenv.Load()

	params := opts.params()
	if err := pipeline.ValidateParams(params); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger.Setup(logger.Options{Level: level, Format: "console", Output: stderr, ServiceName: "pdf2audio-convert"})

	if err := config.ApplyEnvironment(cfg); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}

	document, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	orchestrator := pipeline.NewOrchestrator(
		extract.NewDefaultExtractor(cfg.Pipeline.OCRLanguage),
		transform.NewTransformerFromConfig(&cfg.LLM),
		tts.NewRegistryFromConfig(&cfg.TTS),
		audio.NewAssembler(&cfg.Audio),
		cost.NewEstimator(&cfg.Cost, &cfg.TTS),
		pipeline.Config{
			MaxChunkChars:        cfg.Pipeline.MaxChunkChars,
			SynthesisConcurrency: cfg.Pipeline.SynthesisConcurrency,
			WorkRoot:             cfg.WorkRoot(),
		},
	)

	bar := newProgressBar(stderr, filepath.Base(opts.input))
	handle, err := orchestrator.Convert(ctx, document, params, func(p int) {
		_ = bar.Set(p)
	})
	if err != nil {
		_ = bar.Exit()
		return describeFailure(err)
	}
	defer func() { _ = handle.Cleanup() }()
	_ = bar.Finish()

	out := opts.outputPath()
	if err := copyAudio(handle, out); err != nil {
		return err
	}

	result := handle.Result()
	fmt.Fprintf(stdout, "Wrote %s\n", out)
	fmt.Fprintf(stdout, "Characters synthesized: %d\n", result.Usage.CharactersSynthesized)
	fmt.Fprintf(stdout, "LLM tokens used: %d\n", result.Usage.LLMTokensUsed)
	fmt.Fprintf(stdout, "Estimated cost: $%s\n", result.EstimatedCost.StringFixed(6))
	return nil
}

func newProgressBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// copyAudio copies the final audio out of the working directory, which is
// removed by Cleanup.
func copyAudio(handle port.ConversionHandle, dst string) error {
	src, err := os.Open(handle.Result().AudioFilePath)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer src.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return out.Close()
}

func describeFailure(err error) error {
	if domain.IsUserError(err) {
		return fmt.Errorf("conversion rejected: %w", err)
	}
	return fmt.Errorf("conversion failed: %w", err)
}
