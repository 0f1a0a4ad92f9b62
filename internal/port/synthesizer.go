package port

import "context"

// SpeechSynthesizer converts one chunk of text into encoded (MP3) audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}
