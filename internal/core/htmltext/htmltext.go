// Package htmltext converts the HTML bodies served by fediverse APIs into
// the two forms the normalized model carries: a sanitized HTML string and a
// plain-text derivation
package htmltext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy = bluemonday.UGCPolicy()

	reBreak = regexp.MustCompile(`(?i)<br\s*/?>`)
	// closers of block-level elements become newlines before tag removal
	reBlockClose = regexp.MustCompile(`(?i)</(p|div|li|blockquote|pre|h[1-6]|tr)>`)
	reTag        = regexp.MustCompile(`<[^>]*>`)
	reSpaces     = regexp.MustCompile(`[ \t\r\f]+`)
	reNewlines   = regexp.MustCompile(`\n{2,}`)
	reNumEntity  = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)
)

var namedEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// markupEscaper re-encodes the two characters a later Strip would read as
// markup. Text that survives stripping must never grow a new tag
var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize returns HTML restricted to user-generated-content safe markup
func Sanitize(html string) string {
	return ugcPolicy.Sanitize(html)
}

// Strip derives plain text from HTML: breaks and block closers become
// newlines, remaining tags are removed, entities are decoded, and
// whitespace runs are collapsed. Angle brackets in the decoded text are
// kept entity-encoded so the result is a fixed point: Strip(Strip(x))
// always equals Strip(x)
func Strip(html string) string {
	s := reBreak.ReplaceAllString(html, "\n")
	s = reBlockClose.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	s = decodeEntities(s)
	s = markupEscaper.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	s = reNewlines.ReplaceAllString(s, "\n")
	// trim each line, then the whole
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// decodeEntities decodes until no rewrite applies, so double-encoded text
// ("&amp;lt;") ends fully decoded instead of surfacing a fresh entity on
// the next pass. Every rewrite shortens the string, so this terminates
func decodeEntities(s string) string {
	for {
		next := namedEntities.Replace(decodeNumericEntities(s))
		if next == s {
			return s
		}
		s = next
	}
}

func decodeNumericEntities(s string) string {
	return reNumEntity.ReplaceAllStringFunc(s, func(m string) string {
		body := m[2 : len(m)-1]
		var n int64
		var err error
		if body[0] == 'x' || body[0] == 'X' {
			n, err = strconv.ParseInt(body[1:], 16, 32)
		} else {
			n, err = strconv.ParseInt(body, 10, 32)
		}
		if err != nil || n <= 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
}
