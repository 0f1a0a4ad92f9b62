// Package extract turns a PDF file into plain text, falling back to OCR for
// scanned documents.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

const (
	// DefaultMinTextChars is the non-whitespace character count below which a
	// document is treated as image-based.
	DefaultMinTextChars = 100
	// DefaultOCRDPI is the rasterization resolution used for OCR.
	DefaultOCRDPI = 300
)

// TextLayerReader reads the embedded text layer of a PDF, one entry per page.
type TextLayerReader interface {
	ReadPages(path string) ([]string, error)
}

// PageRasterizer renders every page of a PDF to an image file in dir and
// returns the image paths in page order.
type PageRasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int, dir string) ([]string, error)
}

// OCREngine recognizes the text in an image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Extractor implements direct text extraction with an OCR fallback.
type Extractor struct {
	textLayer    TextLayerReader
	rasterizer   PageRasterizer
	ocr          OCREngine
	minTextChars int
	dpi          int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinTextChars overrides the OCR fallback threshold.
func WithMinTextChars(n int) Option {
	return func(e *Extractor) { e.minTextChars = n }
}

// WithDPI overrides the OCR rasterization resolution.
func WithDPI(dpi int) Option {
	return func(e *Extractor) { e.dpi = dpi }
}

// NewExtractor creates an Extractor from its three collaborators.
func NewExtractor(textLayer TextLayerReader, rasterizer PageRasterizer, ocr OCREngine, opts ...Option) *Extractor {
	e := &Extractor{
		textLayer:    textLayer,
		rasterizer:   rasterizer,
		ocr:          ocr,
		minTextChars: DefaultMinTextChars,
		dpi:          DefaultOCRDPI,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefaultExtractor wires the ledongthuc/pdf text layer, MuPDF rasterization
// and Tesseract OCR for the given language.
func NewDefaultExtractor(ocrLanguage string) *Extractor {
	return NewExtractor(PDFTextLayer{}, FitzRasterizer{}, NewTesseractOCR(ocrLanguage))
}

// Extract returns the text of the PDF at path in page order.
//
// When the text layer is unreadable or holds fewer than the threshold of
// non-whitespace characters, pages are rasterized into a scratch directory
// next to the document and recognized with OCR. A failure of the OCR path is
// reported as domain.ErrExtractionFailed; a document that yields no text at
// all is reported as domain.ErrEmptyDocument.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	pages, err := e.textLayer.ReadPages(path)
	text := strings.Join(pages, "")

	switch {
	case err != nil:
		log.Warn().Err(err).Str("path", path).Msg("extract.Extract: text layer unreadable, using OCR")
	case countNonSpace(text) < e.minTextChars:
		log.Info().Int("chars", countNonSpace(text)).Msg("extract.Extract: low text yield, using OCR")
	default:
		return text, nil
	}

	text, err = e.extractOCR(ctx, path)
	if err != nil {
		return "", domain.UserError("extract", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err))
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.UserError("extract", domain.ErrEmptyDocument)
	}
	return text, nil
}

func (e *Extractor) extractOCR(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Dir(path), "ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating OCR scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	images, err := e.rasterizer.Rasterize(ctx, path, e.dpi, dir)
	if err != nil {
		return "", fmt.Errorf("rasterizing pages: %w", err)
	}

	var sb strings.Builder
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("OCR page %d: %w", i+1, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
