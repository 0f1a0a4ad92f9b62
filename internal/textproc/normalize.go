// Package textproc turns extracted document text into speech-ready segments.
package textproc

import (
	"regexp"
	"strings"
)

// space matches Unicode whitespace, including NBSP and the em and
// ideographic spaces PDF text layers emit.
const space = `[\s\p{Z}\x{0085}]`

var (
	blankLinesRe = regexp.MustCompile(`\n` + space + `*\n`)
	whitespaceRe = regexp.MustCompile(space + `+`)
	multiSpaceRe = regexp.MustCompile(space + `{2,}`)
)

// mojibake repairs UTF-8 punctuation that was decoded as Latin-1/Windows-1252.
// Longer sequences are listed first.
var mojibake = strings.NewReplacer(
	"â€”", "-",
	"â€“", "-",
	"â€œ", `"`,
	"â€\u009d", `"`,
	"â€ť", `"`,
	"â€™", "'",
	"â€˜", "'",
	"â€¦", "...",
	"â€¢", "*",
	"â¦", "...",
	"â¢", "*",
)

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
)

// Normalize cleans extracted text.
//
// Blank-line runs collapse to a single newline, all whitespace runs collapse
// to one space, mis-decoded punctuation is repaired, typographic ligatures are
// expanded and the result is trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = mojibake.Replace(text)
	text = ligatures.Replace(text)
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
