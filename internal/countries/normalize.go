package countries

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a raw identifier to its lookup key: accents folded,
// lower-cased, "&" spelled out, and every run of punctuation or whitespace
// collapsed to a single space.
func Normalize(raw string) string {
	// transformers carry state, so the chain is built per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	emit := func(word string) {
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteString(word)
	}
	for _, r := range s {
		switch {
		case r == '&':
			pendingSpace = true
			emit("and")
			pendingSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			emit(string(r))
		default:
			pendingSpace = true
		}
	}
	return b.String()
}
