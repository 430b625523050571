// Package ui provides terminal output for ingest progress and run summaries.
package ui

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a phase of one ingest run.
type Stage int

const (
	StageScanning Stage = iota
	StageIngesting
	StageMaintenance
	StageComplete
)

// stageLabels holds the display name and line tag of each Stage.
var stageLabels = [...]struct{ name, tag string }{
	StageScanning:    {"Scanning", "SCAN"},
	StageIngesting:   {"Ingesting", "INGEST"},
	StageMaintenance: {"Maintenance", "MAINT"},
	StageComplete:    {"Complete", "DONE"},
}

func (s Stage) known() bool {
	return s >= 0 && int(s) < len(stageLabels)
}

// String returns the stage name, or "Unknown".
func (s Stage) String() string {
	if !s.known() {
		return "Unknown"
	}
	return stageLabels[s].name
}

// Icon returns the short tag printed in front of progress lines.
func (s Stage) Icon() string {
	if !s.known() {
		return "???"
	}
	return stageLabels[s].tag
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents an error during processing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats contains the final run summary.
type CompletionStats struct {
	Run           string
	Files         int
	FilesFailed   int
	Documents     int64
	Chunks        int64
	FTSEntries    int64
	Duplicates    int64
	AvgChunkChars float64
	DBSizeBytes   int64
	DBPath        string
	Duration      time.Duration
	Errors        int
	Warnings      int
	Interrupted   bool
}

// Renderer displays the progress of one ingest run. Start is called before
// any event and Stop after Complete; the methods may be called from the
// ingest goroutine only.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	InputDir   string // Input directory shown in the header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithInputDir sets the input directory shown in the header.
func WithInputDir(dir string) ConfigOption {
	return func(c *Config) {
		c.InputDir = dir
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for an interactive terminal and the plain
// renderer for CI, pipes and --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	if tui, err := NewTUIRenderer(cfg); err == nil {
		return tui
	}
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DetectNoColor reports whether NO_COLOR is set, to any value.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// ciEnv lists variables set by common CI systems.
var ciEnv = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// DetectCI reports whether the process runs under a CI system.
func DetectCI() bool {
	return slices.ContainsFunc(ciEnv, func(name string) bool {
		_, set := os.LookupEnv(name)
		return set
	})
}
