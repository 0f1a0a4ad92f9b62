package extract_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/extract"
)

type fakeTextLayer struct {
	pages []string
	err   error
}

func (f fakeTextLayer) ReadPages(string) ([]string, error) {
	return f.pages, f.err
}

type fakeRasterizer struct {
	pages  int
	err    error
	gotDPI int
	called bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, dpi int, dir string) ([]string, error) {
	f.called = true
	f.gotDPI = dpi
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, f.pages)
	for i := range out {
		out[i] = filepath.Join(dir, "page"+string(rune('a'+i))+".png")
	}
	return out, nil
}

type fakeOCR struct {
	text map[string]string
	err  error
}

func (f fakeOCR) Recognize(_ context.Context, imagePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text[filepath.Base(imagePath)], nil
}

func docPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "input.pdf")
}

func TestExtract_UsesTextLayerWhenRich(t *testing.T) {
	page := strings.Repeat("readable words ", 10)
	r := &fakeRasterizer{pages: 1}
	e := extract.NewExtractor(fakeTextLayer{pages: []string{page, page}}, r, fakeOCR{})

	text, err := e.Extract(context.Background(), docPath(t))

	require.NoError(t, err)
	assert.Equal(t, page+page, text)
	assert.False(t, r.called)
}

func TestExtract_LowYieldFallsBackToOCR(t *testing.T) {
	r := &fakeRasterizer{pages: 2}
	ocr := fakeOCR{text: map[string]string{"pagea.png": "Scanned page one", "pageb.png": "Scanned page two"}}
	e := extract.NewExtractor(fakeTextLayer{pages: []string{"  ", "x"}}, r, ocr)

	text, err := e.Extract(context.Background(), docPath(t))

	require.NoError(t, err)
	assert.True(t, r.called)
	assert.Equal(t, 300, r.gotDPI)
	assert.Equal(t, "Scanned page one\nScanned page two\n", text)
}

func TestExtract_TextLayerErrorFallsBackToOCR(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	ocr := fakeOCR{text: map[string]string{"pagea.png": "Recovered words"}}
	e := extract.NewExtractor(fakeTextLayer{err: errors.New("malformed xref")}, r, ocr)

	text, err := e.Extract(context.Background(), docPath(t))

	require.NoError(t, err)
	assert.Contains(t, text, "Recovered words")
}

func TestExtract_OCRFailureIsTerminal(t *testing.T) {
	r := &fakeRasterizer{err: errors.New("mupdf: cannot open")}
	e := extract.NewExtractor(fakeTextLayer{pages: []string{""}}, r, fakeOCR{})

	_, err := e.Extract(context.Background(), docPath(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.True(t, domain.IsUserError(err))
}

func TestExtract_NoTextAnywhereIsEmptyDocument(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := extract.NewExtractor(fakeTextLayer{pages: []string{""}}, r, fakeOCR{text: map[string]string{}})

	_, err := e.Extract(context.Background(), docPath(t))

	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	assert.True(t, domain.IsUserError(err))
}

func TestExtract_CustomThreshold(t *testing.T) {
	r := &fakeRasterizer{pages: 1}
	e := extract.NewExtractor(fakeTextLayer{pages: []string{"Hello World"}}, r, fakeOCR{}, extract.WithMinTextChars(5))

	text, err := e.Extract(context.Background(), docPath(t))

	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)
	assert.False(t, r.called)
}

func TestPDFTextLayer_MissingFile(t *testing.T) {
	_, err := extract.PDFTextLayer{}.ReadPages(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
