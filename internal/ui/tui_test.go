package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel() *ingestModel {
	return newIngestModel("/dumps", NoColorStyles())
}

func update(t *testing.T, m *ingestModel, msgs ...tea.Msg) tea.Cmd {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		require.Same(t, m, next)
	}
	return cmd
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	// Given: a non-TTY buffer
	buf := &bytes.Buffer{}

	// When: creating a TUI renderer
	r, err := NewTUIRenderer(NewConfig(buf))

	// Then: it refuses, and NewRenderer falls back to plain output
	assert.Error(t, err)
	assert.Nil(t, r)
	_, plain := NewRenderer(NewConfig(buf)).(*PlainRenderer)
	assert.True(t, plain)
}

func TestIngestModel_InitialView(t *testing.T) {
	m := newTestModel()

	view := m.View()

	assert.Contains(t, view, "recordex • /dumps")
	assert.Contains(t, view, "Scanning")
	assert.Contains(t, view, "○ Maintenance")
	assert.Contains(t, view, "Preparing...")
	assert.Contains(t, view, "ctrl+c to stop")
}

func TestIngestModel_FileProgress(t *testing.T) {
	// Given: a model in the ingest stage
	m := newTestModel()

	// When: a file progress event arrives
	update(t, m, progressMsg{Stage: StageIngesting, Current: 3, Total: 12, CurrentFile: "batch/a.txt"})
	view := m.View()

	// Then: the bar, counter and current file are shown, scanning is done
	assert.Contains(t, view, "3 / 12 files")
	assert.Contains(t, view, " 25%")
	assert.Contains(t, view, "batch/a.txt")
	assert.Contains(t, view, "● Scanning")
}

func TestIngestModel_CommitStatusKeepsFileCounter(t *testing.T) {
	// Given: a model that has seen file progress
	m := newTestModel()
	update(t, m, progressMsg{Stage: StageIngesting, Current: 2, Total: 4, CurrentFile: "b.txt"})

	// When: a commit-interval message without totals follows
	update(t, m, progressMsg{Stage: StageIngesting, Message: "docs: 2,000 | chunks: 3,100 | dup_skipped: 4"})
	view := m.View()

	// Then: the status line is added and the counter is kept
	assert.Contains(t, view, "docs: 2,000 | chunks: 3,100 | dup_skipped: 4")
	assert.Contains(t, view, "2 / 4 files")
	assert.Contains(t, view, "b.txt")
}

func TestIngestModel_ProblemCounters(t *testing.T) {
	m := newTestModel()

	update(t, m,
		errorMsg{File: "bad.txt", Err: errors.New("permission denied")},
		errorMsg{Err: errors.New("optimize failed"), IsWarn: true},
		errorMsg{File: "worse.txt", Err: errors.New("short read")})
	view := m.View()

	assert.Contains(t, view, "2 errors")
	assert.Contains(t, view, "1 warnings")
	assert.Contains(t, view, "worse.txt: short read")
}

func TestIngestModel_CtrlCInterruptsOnce(t *testing.T) {
	// Given: a model whose interrupt is recorded
	m := newTestModel()
	calls := 0
	m.interrupt = func() { calls++ }

	// When: Ctrl+C is pressed twice
	cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC}, tea.KeyMsg{Type: tea.KeyCtrlC})

	// Then: the ingest is signalled once and the program keeps running
	assert.Equal(t, 1, calls)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "stopping after the current record")
}

func TestIngestModel_CompleteShowsSummaryAndQuits(t *testing.T) {
	// Given: a model mid-run
	m := newTestModel()
	update(t, m, progressMsg{Stage: StageIngesting, Current: 1, Total: 3})

	// When: the run completes
	cmd := update(t, m, completeMsg(sampleStats()))

	// Then: the summary replaces the panel and the program quits
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	view := m.View()
	assert.Contains(t, view, "Done: 3 files in 1.5s")
	assert.Contains(t, view, "12,345")
	assert.Contains(t, view, "records.sqlite")
	assert.NotContains(t, view, "1 / 3 files")
}

func TestIngestModel_InterruptedSummary(t *testing.T) {
	m := newTestModel()
	stats := sampleStats()
	stats.Interrupted = true

	update(t, m, completeMsg(stats))

	assert.Contains(t, m.View(), "! Interrupted: 3 files")
}

func TestIngestModel_WindowResizeBoundsBar(t *testing.T) {
	m := newTestModel()

	update(t, m, tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Equal(t, 20, m.bar.Width)

	update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 100, m.bar.Width)
}

func TestTruncateFilePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{"short", "src/a.txt", 50, "src/a.txt"},
		{"empty", "", 50, ""},
		{"keeps name", "dumps/2024/batch-one/records.txt", 24, "...batch-one/records.txt"},
		{"no dir", "averyveryverylongname.txt", 10, "...ame.txt"},
		{"tiny", "abcdef", 3, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateFilePath(tt.path, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), max(tt.maxLen, 3))
		})
	}
}

func TestTruncateFilePath_LongNameFallsBackToTail(t *testing.T) {
	got := truncateFilePath("dir/"+strings.Repeat("x", 40)+".txt", 20)

	assert.Len(t, got, 20)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, ".txt"))
}
