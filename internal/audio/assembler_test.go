package audio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/audio"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

type fakeRunner struct {
	name   string
	args   []string
	output []byte
	err    error
	write  []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	if f.write != nil {
		_ = os.WriteFile(args[len(args)-1], f.write, 0o600)
	}
	return f.output, f.err
}

func writeChunks(t *testing.T, dir string, contents ...string) []domain.AudioChunk {
	t.Helper()
	chunks := make([]domain.AudioChunk, len(contents))
	for i, c := range contents {
		p := filepath.Join(dir, "chunk_"+string(rune('a'+i))+".mp3")
		require.NoError(t, os.WriteFile(p, []byte(c), 0o600))
		chunks[i] = domain.AudioChunk{Index: i, Path: p}
	}
	return chunks
}

func TestAssemble_SingleChunkIsCopied(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	a := audio.NewAssembler(&config.AudioConfig{}, audio.WithRunner(runner))

	out, err := a.Assemble(context.Background(), writeChunks(t, dir, "only"), dir)

	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "only", string(data))
	assert.Empty(t, runner.name, "ffmpeg not invoked")
}

func TestAssemble_InvokesConcatDemuxer(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{write: []byte("joined")}
	a := audio.NewAssembler(&config.AudioConfig{FFmpegPath: "/usr/bin/ffmpeg"}, audio.WithRunner(runner))
	chunks := writeChunks(t, dir, "one", "two")
	chunks[0], chunks[1] = chunks[1], chunks[0]

	out, err := a.Assemble(context.Background(), chunks, dir)

	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ffmpeg", runner.name)
	assert.Contains(t, runner.args, "concat")
	assert.Contains(t, runner.args, "copy")
	assert.Equal(t, out, runner.args[len(runner.args)-1])

	manifest, err := os.ReadFile(filepath.Join(dir, "concat_list.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"file '"+filepath.Join(dir, "chunk_a.mp3")+"'\nfile '"+filepath.Join(dir, "chunk_b.mp3")+"'\n",
		string(manifest))
}

func TestAssemble_ToolFailureIsSystemError(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{output: []byte("Invalid data found when processing input"), err: errors.New("exit status 1")}
	a := audio.NewAssembler(&config.AudioConfig{}, audio.WithRunner(runner))

	_, err := a.Assemble(context.Background(), writeChunks(t, dir, "one", "two"), dir)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAssemblyFailed)
	assert.False(t, domain.IsUserError(err))
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestAssemble_RawFallback(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{err: errors.New("executable file not found")}
	a := audio.NewAssembler(&config.AudioConfig{RawConcatFallback: true}, audio.WithRunner(runner))

	out, err := a.Assemble(context.Background(), writeChunks(t, dir, "one", "two", "three"), dir)

	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "onetwothree", string(data))
}

func TestAssemble_NoChunks(t *testing.T) {
	a := audio.NewAssembler(&config.AudioConfig{})

	_, err := a.Assemble(context.Background(), nil, t.TempDir())

	assert.ErrorIs(t, err, domain.ErrAssemblyFailed)
}

func TestEscapeManifestPath(t *testing.T) {
	assert.Equal(t, `/tmp/it'\''s/chunk.mp3`, audio.EscapeManifestPath("/tmp/it's/chunk.mp3"))
	assert.Equal(t, "/plain/path.mp3", audio.EscapeManifestPath("/plain/path.mp3"))
}
