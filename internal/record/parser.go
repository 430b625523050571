package record

import (
	"regexp"
	"strings"
)

// BodySeparator marks the start of free-form body text inside a block.
const BodySeparator = "----------------------------------------"

var (
	headerRe           = regexp.MustCompile(`(?m)^--- SOURCE:\s*(.+?)\s*---\s*$`)
	markerLineRe       = regexp.MustCompile(`(?m)^--- SOURCE:.*---\s*`)
	metadataSourceRe   = regexp.MustCompile(`METADATA_SOURCE:\s*(.+)`)
	metadataFilenameRe = regexp.MustCompile(`METADATA_FILENAME:\s*(.+)`)
)

// ParseBlocks splits text into blocks at each source marker line. A file
// without markers yields nil.
func ParseBlocks(text string) []Block {
	matches := headerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	blocks := make([]Block, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		raw := strings.TrimSpace(text[m[0]:end])

		blocks = append(blocks, Block{
			HeaderLine:       text[m[2]:m[3]],
			MetadataSource:   firstGroup(metadataSourceRe, raw),
			MetadataFilename: firstGroup(metadataFilenameRe, raw),
			Body:             extractBody(raw),
		})
	}
	return blocks
}

func extractBody(raw string) string {
	if idx := strings.LastIndex(raw, BodySeparator); idx >= 0 {
		return strings.TrimSpace(raw[idx+len(BodySeparator):])
	}
	return strings.TrimSpace(markerLineRe.ReplaceAllString(raw, ""))
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
