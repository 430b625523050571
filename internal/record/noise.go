package record

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// noiseStep is one transform in the cleaning pipeline. Order matters.
type noiseStep func(string) string

func replaceAll(pattern, repl string) noiseStep {
	re := regexp.MustCompile(pattern)
	return func(s string) string { return re.ReplaceAllString(s, repl) }
}

// Boilerplate spans are capped so a missing terminator cannot swallow
// unrelated text. RE2 limits repeat counts to 1000, so caps above that are
// enforced by boundedSpan instead of a {0,n} quantifier.
var noiseSteps = []noiseStep{
	replaceAll(`--- PAGE \d+ ---`, "\n"),
	replaceAll(`(?im)^METADATA_(SOURCE|FILENAME):.*$`, ""),
	replaceAll(`(?im)^Couldn't load plugin\.\s*$`, ""),
	replaceAll(`(?i)This communication contains information[\s\S]{0,900}?applicable law\.\s*`, ""),
	boundedSpan(`(?i)please note`, `(?i)copyright -all rights reserved\s*`, 1400),
	replaceAll(`\n{3,}`, "\n\n"),
}

// boundedSpan removes every span that starts with a match of start and ends
// with the first match of end beginning at most maxRunes runes after it.
func boundedSpan(start, end string, maxRunes int) noiseStep {
	startRE := regexp.MustCompile(start)
	endRE := regexp.MustCompile(end)

	return func(s string) string {
		var sb strings.Builder
		kept, pos := 0, 0
		for pos < len(s) {
			loc := startRE.FindStringIndex(s[pos:])
			if loc == nil {
				break
			}
			from, body := pos+loc[0], pos+loc[1]

			tail := s[body:]
			if e := endRE.FindStringIndex(tail); e != nil && utf8.RuneCountInString(tail[:e[0]]) <= maxRunes {
				sb.WriteString(s[kept:from])
				kept = body + e[1]
				pos = kept
				continue
			}
			_, size := utf8.DecodeRuneInString(s[from:])
			pos = from + size
		}
		if kept == 0 {
			return s
		}
		sb.WriteString(s[kept:])
		return sb.String()
	}
}

// Cleaner turns a raw block body into clean text.
type Cleaner struct {
	NFKC bool
}

// Clean sanitises body, optionally NFKC-normalises it, then strips noise.
func (c Cleaner) Clean(body string) string {
	s := Sanitize(body)
	if c.NFKC {
		s = NormalizeNFKC(s)
	}
	return stripNoise(s)
}

// StripNoise sanitises body and removes page markers, metadata echoes,
// plugin notices and known boilerplate, then collapses blank runs.
func StripNoise(body string) string {
	return stripNoise(Sanitize(body))
}

func stripNoise(s string) string {
	for _, step := range noiseSteps {
		s = step(s)
	}
	return strings.TrimSpace(s)
}
