package port

import (
	"context"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

// ConversionHandle is a finished pipeline run whose working directory is still
// on disk. The caller persists Result().AudioFilePath and then calls Cleanup.
type ConversionHandle interface {
	Result() domain.ConversionResult
	Cleanup() error
}

// DocumentConverter runs the full PDF-to-audio pipeline for one job.
type DocumentConverter interface {
	Convert(ctx context.Context, document []byte, params domain.ConversionParams, onProgress domain.ProgressFunc) (ConversionHandle, error)
}
