// Package output provides consistent CLI output formatting for recordex
// commands that print results rather than progress.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// labelWidth aligns Field values with the ingest summary.
const labelWidth = 20

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✓", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("!", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Field prints a "Label:  value" row padded like the ingest summary.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "%-*s %s\n", labelWidth, label+":", value)
}

// Hit prints one numbered result: a header line and its body collapsed to
// a single indented line.
func (w *Writer) Hit(n int, header, body string) {
	_, _ = fmt.Fprintf(w.out, "%3d. %s\n", n, header)
	if body = strings.Join(strings.Fields(body), " "); body != "" {
		_, _ = fmt.Fprintf(w.out, "     %s\n", body)
	}
}

// JSON writes v as indented JSON. HTML characters are kept as-is.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
