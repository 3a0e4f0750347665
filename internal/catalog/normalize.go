package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize is the shared text-normalisation rule: lowercase, Unicode NFKD
// decomposition, then strip combining marks. Every ISAM key derivation and
// every text comparison in the manager's search_text/LIKE path must go
// through this exact function — mixing normalised and raw text between the
// write and read paths corrupts lookups silently.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	decomposed := norm.NFKD.String(lower)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark, strip it
		}
		b.WriteRune(r)
	}
	return b.String()
}
