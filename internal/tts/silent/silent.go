// Package silent provides the offline TTS stub used in testing mode.
package silent

import (
	"bytes"
	"context"

	"github.com/rs/zerolog/log"
)

// One MPEG-1 Layer III frame: 128 kbit/s, 44.1 kHz, mono, no CRC. A zeroed
// side-info and main-data block decodes as silence.
var frameHeader = []byte{0xFF, 0xFB, 0x90, 0xC4}

const (
	frameSize     = 417 // 144 * 128000 / 44100
	framesPerClip = 39  // ~1s at 26.1ms per frame
)

var silentMP3 = buildSilentMP3()

func buildSilentMP3() []byte {
	frame := make([]byte, frameSize)
	copy(frame, frameHeader)
	return bytes.Repeat(frame, framesPerClip)
}

// SilentMP3 returns a copy of the fixed one-second silent clip.
func SilentMP3() []byte {
	out := make([]byte, len(silentMP3))
	copy(out, silentMP3)
	return out
}

// Synthesizer returns the same silent clip for every chunk.
type Synthesizer struct{}

// New creates the stub synthesizer.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize ignores text, voice and speed.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug().
		Int("chars", len(text)).
		Str("voice", voice).
		Float64("speed", speed).
		Msg("silent.Synthesize: returning silent clip")
	return SilentMP3(), nil
}
