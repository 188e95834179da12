package perspective

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxTextBytes is the ceiling the scoring API accepts for one comment.
const MaxTextBytes = 20 * 1024

var (
	quoteRefPrefix   = regexp.MustCompile(`^>>?\d+`)
	bareNumberPrefix = regexp.MustCompile(`^\d+`)
)

// Normalize prepares raw post markup for scoring: strips tags, decodes
// entities, removes a leading quote-reference marker or bare post number,
// and caps the result at MaxTextBytes of valid UTF-8. An empty return value
// means the item must be skipped, not scored.
func Normalize(raw string) string {
	text := stripMarkup(raw)
	text = quoteRefPrefix.ReplaceAllString(text, "")
	text = bareNumberPrefix.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	return truncateUTF8(text, MaxTextBytes)
}

// stripMarkup drops tags and decodes HTML entities, keeping text content.
// Line breaks become spaces so adjacent lines do not run together.
func stripMarkup(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	tok := html.NewTokenizer(strings.NewReader(raw))

	var b strings.Builder

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tok.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := tok.TagName(); string(name) == "br" {
				b.WriteByte(' ')
			}
		default:
		}
	}
}

// truncateUTF8 cuts s to at most max bytes, discarding any trailing
// incomplete multi-byte sequence so the result stays valid UTF-8.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
