package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrInvalidJobParams    = errors.New("invalid job parameters")
	ErrEmptyDocument       = errors.New("no text could be extracted from the PDF")
	ErrExtractionFailed    = errors.New("text extraction failed")
	ErrUnsupportedProvider = errors.New("unsupported TTS provider")
	ErrMissingCredentials  = errors.New("missing LLM configuration: no API key for OpenRouter or OpenAI")
	ErrTTSNotConfigured    = errors.New("TTS provider is not configured")
	ErrAssemblyFailed      = errors.New("audio assembly failed")
	ErrSynthesisFailed     = errors.New("speech synthesis failed")
)

// ErrorKind classifies a failure for retry decisions.
type ErrorKind string

const (
	// KindUser failures are terminal: retrying the same input fails the same way.
	KindUser ErrorKind = "user"
	// KindSystem failures are retried at the job level.
	KindSystem ErrorKind = "system"
)

// ConversionError tags a pipeline failure with the stage that raised it and
// its retry classification.
type ConversionError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// UserError wraps err as a terminal failure at stage.
func UserError(stage string, err error) *ConversionError {
	return &ConversionError{Kind: KindUser, Stage: stage, Err: err}
}

// SystemError wraps err as a retryable failure at stage.
func SystemError(stage string, err error) *ConversionError {
	return &ConversionError{Kind: KindSystem, Stage: stage, Err: err}
}

var terminalErrors = []error{
	ErrInvalidJobParams,
	ErrEmptyDocument,
	ErrExtractionFailed,
	ErrUnsupportedProvider,
	ErrMissingCredentials,
	ErrTTSNotConfigured,
}

// IsUserError reports whether err should fail the job without a retry.
// An explicit ConversionError kind wins over the sentinel it wraps.
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr.Kind == KindUser
	}
	for _, target := range terminalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
