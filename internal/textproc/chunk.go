package textproc

import (
	"strings"
	"unicode"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
)

// DefaultMaxChunkChars is the per-request ceiling shared by all providers.
const DefaultMaxChunkChars = 4500

// Chunk splits text into ordered segments of at most maxChars characters.
//
// Each segment ends at the last sentence terminator followed by whitespace
// inside the window, else at the last whitespace, else at exactly maxChars.
// Segments are trimmed and never empty. Lengths are counted in runes.
func Chunk(text string, maxChars int) []domain.TextChunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	rest := []rune(strings.TrimSpace(text))
	if len(rest) == 0 {
		return nil
	}

	var chunks []domain.TextChunk
	emit := func(seg []rune) {
		s := strings.TrimSpace(string(seg))
		if s == "" {
			return
		}
		chunks = append(chunks, domain.TextChunk{Index: len(chunks), Text: s})
	}

	for len(rest) > maxChars {
		cut := splitPoint(rest, maxChars)
		emit(rest[:cut])
		rest = trimLeftSpace(rest[cut:])
	}
	emit(rest)

	return chunks
}

// splitPoint returns the exclusive end of the next chunk within rest[:maxChars].
func splitPoint(rest []rune, maxChars int) int {
	for i := maxChars - 1; i >= 0; i-- {
		if isTerminator(rest[i]) && i+1 < len(rest) && unicode.IsSpace(rest[i+1]) {
			return i + 1
		}
	}
	for i := maxChars - 1; i > 0; i-- {
		if unicode.IsSpace(rest[i]) {
			return i
		}
	}
	return maxChars
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func trimLeftSpace(r []rune) []rune {
	i := 0
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}
	return r[i:]
}
