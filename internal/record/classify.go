package record

import "regexp"

const guessPrefixRunes = 1500

var (
	fromRe    = regexp.MustCompile(`(?i)(^|\n)\s*From:\s*`)
	subjectRe = regexp.MustCompile(`(?i)(^|\n)\s*Subject:\s*`)
)

// GuessType looks for From: and Subject: lines near the top of clean.
func GuessType(clean string) DocType {
	head := prefixRunes(clean, guessPrefixRunes)
	if fromRe.MatchString(head) && subjectRe.MatchString(head) {
		return DocTypeEmail
	}
	return DocTypeDocument
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
