// Package audio joins synthesized chunk files into the final audiobook.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const (
	manifestName = "concat_list.txt"
	outputName   = "final_audio.mp3"
)

// CommandRunner executes an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Assembler concatenates MP3 chunks with ffmpeg's concat demuxer, copying
// frames without re-encoding.
type Assembler struct {
	ffmpegPath  string
	runner      CommandRunner
	rawFallback bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(a *Assembler) { a.runner = r }
}

// WithRawConcatFallback enables byte-level concatenation when ffmpeg fails.
func WithRawConcatFallback(enabled bool) Option {
	return func(a *Assembler) { a.rawFallback = enabled }
}

// NewAssembler creates an Assembler from config.
func NewAssembler(cfg *config.AudioConfig, opts ...Option) *Assembler {
	a := &Assembler{
		ffmpegPath:  cfg.FFmpegPath,
		runner:      ExecRunner{},
		rawFallback: cfg.RawConcatFallback,
	}
	if a.ffmpegPath == "" {
		a.ffmpegPath = "ffmpeg"
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble writes the chunks, in index order, to a single MP3 in workDir and
// returns its path. Failures are system errors wrapping domain.ErrAssemblyFailed.
func (a *Assembler) Assemble(ctx context.Context, chunks []domain.AudioChunk, workDir string) (string, error) {
	if len(chunks) == 0 {
		return "", assemblyError(errors.New("no audio chunks to assemble"))
	}

	ordered := make([]domain.AudioChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	paths := make([]string, len(ordered))
	for i, c := range ordered {
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			return "", assemblyError(fmt.Errorf("resolving chunk %d path: %w", c.Index, err))
		}
		paths[i] = abs
	}

	output := filepath.Join(workDir, outputName)

	if len(paths) == 1 {
		if err := copyFile(paths[0], output); err != nil {
			return "", assemblyError(err)
		}
		return output, nil
	}

	manifest := filepath.Join(workDir, manifestName)
	if err := WriteManifest(manifest, paths); err != nil {
		return "", assemblyError(err)
	}

	out, err := a.runner.Run(ctx, a.ffmpegPath,
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-c", "copy",
		output,
	)
	if err == nil {
		if info, statErr := os.Stat(output); statErr == nil && info.Size() > 0 {
			log.Debug().Int("chunks", len(paths)).Str("output", output).Msg("audio.Assemble: concatenated")
			return output, nil
		}
		err = errors.New("concat produced no output")
	}

	diag := strings.TrimSpace(string(out))
	if ctx.Err() != nil {
		return "", domain.SystemError("assemble", ctx.Err())
	}
	if !a.rawFallback {
		return "", assemblyError(fmt.Errorf("ffmpeg: %v: %s", err, diag))
	}

	log.Warn().Err(err).Str("ffmpeg_output", diag).Msg("audio.Assemble: ffmpeg failed, using raw concatenation")
	if err := concatFiles(paths, output); err != nil {
		return "", assemblyError(err)
	}
	return output, nil
}

// WriteManifest writes an ffmpeg concat list for paths.
func WriteManifest(manifestPath string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(EscapeManifestPath(p))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(manifestPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing concat manifest: %w", err)
	}
	return nil
}

// EscapeManifestPath quotes p for a single-quoted concat list entry.
func EscapeManifestPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func assemblyError(err error) error {
	return domain.SystemError("assemble", fmt.Errorf("%w: %v", domain.ErrAssemblyFailed, err))
}

func copyFile(src, dst string) error {
	return concatFiles([]string{src}, dst)
}

// concatFiles streams srcs into dst one after another.
func concatFiles(srcs []string, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(dst), err)
	}
	for _, src := range srcs {
		if err := appendFile(out, src); err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(dst), err)
	}
	return nil
}

func appendFile(w io.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening chunk: %w", err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	return nil
}
