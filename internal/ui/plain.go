package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer writes one line per event, for pipes, CI logs and --no-tui.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer writing to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

func (r *PlainRenderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Start implements Renderer. Plain output needs no setup.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

// UpdateProgress prints "[TAG] cur/total - file" when a total is known and
// "[TAG] message" otherwise. Events with nothing to say are dropped.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	text := event.Message
	if text == "" {
		text = event.CurrentFile
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case event.Total > 0:
		r.printf("[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, text)
	case text != "":
		r.printf("[%s] %s\n", event.Stage.Icon(), text)
	}
}

// AddError prints the event as "ERROR: file: err" or "WARN: err".
func (r *PlainRenderer) AddError(event ErrorEvent) {
	level := "ERROR"
	if event.IsWarn {
		level = "WARN"
	}
	where := ""
	if event.File != "" {
		where = event.File + ": "
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, event)
	r.printf("%s: %s%v\n", level, where, event.Err)
}

// Complete prints the run summary between horizontal rules.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("\n%s\n%s\n%s\n", summaryRule, headline(stats), summaryRule)
	for _, row := range summaryRows(stats) {
		r.printf("%-20s %s\n", row.Label, row.Value)
	}
	r.printf("%s\n", summaryRule)
}
