package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo describes the stored state of one run.
type StatusInfo struct {
	Run           string  `json:"run"`
	Documents     int64   `json:"documents"`
	Chunks        int64   `json:"chunks"`
	FTSEntries    int64   `json:"fts_entries"`
	Marks         int     `json:"marks"`
	AvgChunkChars float64 `json:"avg_chunk_chars"`
	DBSizeBytes   int64   `json:"db_size_bytes"`
	DBPath        string  `json:"db_path"`
	Driver        string  `json:"driver,omitempty"`
}

// StatusRenderer displays run status for the stats command.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Run: "+info.Run))

	rows := summaryRows(CompletionStats{
		Documents:     info.Documents,
		Chunks:        info.Chunks,
		FTSEntries:    info.FTSEntries,
		AvgChunkChars: info.AvgChunkChars,
		DBSizeBytes:   info.DBSizeBytes,
		DBPath:        info.DBPath,
	})
	for _, row := range rows {
		if row.Label == "Duplicates skipped:" {
			continue // only known during ingest
		}
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render(row.Label), row.Value)
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Marks:"), numbers.Sprintf("%d", info.Marks))
	if info.Driver != "" {
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.styles.Label.Render("Driver:"), info.Driver)
	}

	if info.Documents == 0 {
		_, _ = fmt.Fprintf(r.out, "\n  %s\n", r.styles.Warning.Render("no documents stored for this run"))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}
