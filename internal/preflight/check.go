package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

// Check names.
const (
	CheckNameInputDir   = "input_dir"
	CheckNameDiskSpace  = "disk_space"
	CheckNameWritePerms = "write_permissions"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{StatusPass: "PASS", StatusWarn: "WARN", StatusFail: "FAIL"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	minDisk uint64
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithMinDiskSpace overrides MinDiskSpaceBytes.
func WithMinDiskSpace(bytes uint64) Option {
	return func(c *Checker) {
		c.minDisk = bytes
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output:  os.Stdout,
		minDisk: MinDiskSpaceBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results. An empty
// inputDir skips the input check.
func (c *Checker) RunAll(_ context.Context, inputDir, dbPath string) []CheckResult {
	var results []CheckResult

	if inputDir != "" {
		results = append(results, c.CheckInputDir(inputDir))
	}

	dbDir := filepath.Dir(dbPath)
	results = append(results, c.CheckDiskSpace(dbDir))
	results = append(results, c.CheckWritePermissions(dbDir))

	return results
}

// HasCriticalFailures reports whether a required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return slices.ContainsFunc(results, CheckResult.IsCritical)
}

// Err converts the first critical failure into a coded error.
func (c *Checker) Err(results []CheckResult) error {
	for _, r := range results {
		if !r.IsCritical() {
			continue
		}
		var e *rxerrors.Error
		switch r.Name {
		case CheckNameInputDir:
			e = rxerrors.New(rxerrors.ErrCodeInputMissing, "input directory unusable: "+r.Message, nil)
		case CheckNameDiskSpace:
			e = rxerrors.New(rxerrors.ErrCodeDiskFull, "not enough disk space: "+r.Message, nil)
		default:
			e = rxerrors.New(rxerrors.ErrCodeStoreWrite, "database directory not writable: "+r.Message, nil)
		}
		if r.Details != "" {
			e = e.WithSuggestion(r.Details)
		}
		return e.WithDetail("check", r.Name)
	}
	return nil
}

// SummaryStatus condenses results into "ready", "ready_with_warnings" or
// "failed". An optional check that failed counts as a warning.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	status := "ready"
	for _, r := range results {
		switch {
		case r.IsCritical():
			return "failed"
		case r.Status != StatusPass:
			status = "ready_with_warnings"
		}
	}
	return status
}

// PrintResults writes a report of results to the configured output. Hints
// are shown in verbose mode only.
func (c *Checker) PrintResults(results []CheckResult) {
	var sb strings.Builder
	sb.WriteString("recordex preflight\n==================\n\n")

	var critical []string
	for _, r := range results {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			fmt.Fprintf(&sb, "      %s\n", r.Details)
		}
		if r.IsCritical() {
			critical = append(critical, r.Name+": "+r.Message)
		}
	}
	fmt.Fprintf(&sb, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	if len(critical) > 0 {
		fmt.Fprintf(&sb, "\n%d error(s):\n", len(critical))
		for _, line := range critical {
			fmt.Fprintf(&sb, "  - %s\n", line)
		}
	}
	_, _ = io.WriteString(c.output, sb.String())
}

// CheckInputDir checks that path is a directory whose entries can be listed.
func (c *Checker) CheckInputDir(path string) CheckResult {
	const hint = "pass an existing directory with --input"
	res := CheckResult{Name: CheckNameInputDir, Required: true, Status: StatusFail}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		res.Message, res.Details = fmt.Sprintf("%s: %v", path, err), hint
		return res
	case !info.IsDir():
		res.Message, res.Details = path+" is not a directory", hint
		return res
	}

	if err := readOneEntry(path); err != nil {
		res.Message = fmt.Sprintf("cannot list %s: %v", path, err)
		return res
	}
	res.Status, res.Message = StatusPass, path
	return res
}

// readOneEntry reads a single entry of dir. An empty directory is fine.
func readOneEntry(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CheckWritePermissions creates and removes a scratch file in the database
// directory, or its nearest existing ancestor.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	res := CheckResult{Name: CheckNameWritePerms, Required: true}

	f, err := os.CreateTemp(existingAncestor(path), ".recordex-preflight-*")
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("permission denied: %v", err)
		return res
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	res.Status, res.Message = StatusPass, "OK"
	return res
}

// existingAncestor walks up from path to the first directory that exists.
func existingAncestor(path string) string {
	if path == "" {
		path = "."
	}
	for {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
