package ui

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numbers formats counts with thousands separators.
var numbers = message.NewPrinter(language.English)

// summaryRule frames the summary block.
var summaryRule = strings.Repeat("=", 60)

// summaryRow is one label/value line of the run summary.
type summaryRow struct {
	Label string
	Value string
}

// summaryRows returns the summary lines in display order.
func summaryRows(stats CompletionStats) []summaryRow {
	return []summaryRow{
		{"Documents:", numbers.Sprintf("%d", stats.Documents)},
		{"Chunks:", numbers.Sprintf("%d", stats.Chunks)},
		{"FTS entries:", numbers.Sprintf("%d", stats.FTSEntries)},
		{"Duplicates skipped:", numbers.Sprintf("%d", stats.Duplicates)},
		{"Avg chunk size:", fmt.Sprintf("%.0f chars", stats.AvgChunkChars)},
		{"Database size:", FormatBytes(stats.DBSizeBytes)},
		{"Database file:", stats.DBPath},
	}
}

// headline returns the one-line outcome of the run.
func headline(stats CompletionStats) string {
	var sb strings.Builder
	if stats.Interrupted {
		sb.WriteString("Interrupted")
	} else {
		sb.WriteString("Done")
	}
	sb.WriteString(numbers.Sprintf(": %d files in %s", stats.Files, stats.Duration.Round(100*millisecond)))
	if stats.Errors > 0 || stats.Warnings > 0 {
		sb.WriteString(fmt.Sprintf(" (%d errors, %d warnings)", stats.Errors, stats.Warnings))
	}
	return sb.String()
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

const millisecond = 1000000 // nanoseconds
