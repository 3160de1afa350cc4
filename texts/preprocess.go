// Package texts normalizes raw sentences into the space-delimited token
// strings the translator trains on.
package texts

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Start and end markers wrapped around every preprocessed sentence, so the
// decoder knows where to begin and stop predicting.
const (
	StartToken = "<start>"
	EndToken   = "<end>"
)

// Normalize decomposes s (NFD) and drops combining marks, reducing accented
// characters to their base letter: "déjà" becomes "deja".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Preprocess converts a raw sentence into a space-delimited token string:
// accents stripped, lowercased, the punctuation marks {? . ! , ¿} separated
// into their own tokens, every other non-letter run collapsed to a single
// space, and the result wrapped with StartToken/EndToken.
//
// Preprocess is idempotent: markers on an already-preprocessed sentence are
// recognized and not wrapped twice. An empty sentence yields just the two
// markers.
func Preprocess(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, StartToken)
	s = strings.TrimSuffix(s, EndToken)
	s = Normalize(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s) + len(s)/2)
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case isSeparablePunct(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return StartToken + " " + EndToken
	}
	return StartToken + " " + strings.Join(fields, " ") + " " + EndToken
}

// isSeparablePunct reports whether r is one of the punctuation marks kept as
// standalone tokens.
func isSeparablePunct(r rune) bool {
	switch r {
	case '?', '.', '!', ',', '¿':
		return true
	}
	return false
}
