package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize drops byte sequences that are not valid UTF-8. Nothing is put
// in their place.
func Sanitize(s string) string {
	return strings.ToValidUTF8(s, "")
}

// NormalizeNFKC applies Unicode compatibility normalisation, folding
// ligatures, full-width forms and similar OCR artefacts.
func NormalizeNFKC(s string) string {
	return norm.NFKC.String(s)
}
