package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphBreakRe = regexp.MustCompile(`\n\s*\n+`)

// ParagraphChunker greedily packs whole paragraphs into chunks of roughly
// the target size.
type ParagraphChunker struct {
	target int
}

// NewParagraphChunker returns a chunker for target characters. A target of
// zero or less selects DefaultTargetSize.
func NewParagraphChunker(target int) *ParagraphChunker {
	if target <= 0 {
		target = DefaultTargetSize
	}
	return &ParagraphChunker{target: target}
}

// Chunk implements Chunker.
func (c *ParagraphChunker) Chunk(text string) []string {
	return Paragraphs(text, c.target)
}

// TargetSize implements Chunker.
func (c *ParagraphChunker) TargetSize() int {
	return c.target
}

// Paragraphs splits text on blank lines and merges consecutive paragraphs
// while the merged length stays within target. A single paragraph longer
// than target becomes its own oversized chunk. Lengths are counted in runes.
//
// Text without any non-blank paragraph yields a single trimmed element.
func Paragraphs(text string, target int) []string {
	if target <= 0 {
		target = DefaultTargetSize
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	for _, raw := range paragraphBreakRe.Split(text, -1) {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		pLen := utf8.RuneCountInString(p)

		if curLen > 0 && curLen+pLen+2 > target {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString(paragraphSeparator)
			curLen += 2
		}
		cur.WriteString(p)
		curLen += pLen
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}

	if len(chunks) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return chunks
}

var _ Chunker = (*ParagraphChunker)(nil)
