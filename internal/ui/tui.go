package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stopTimeout bounds how long Stop waits for the program to exit.
const stopTimeout = 2 * time.Second

// TUIRenderer draws a live progress panel with bubbletea: a progress bar over
// the input files, the commit-interval status line and problem counters.
// The final frame is the run summary and stays in scrollback.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a
// terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a TTY")
	}
	return &TUIRenderer{
		cfg:   cfg,
		model: newIngestModel(cfg.InputDir, GetStyles(cfg.NoColor || DetectNoColor())),
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer. The program is not bound to ctx so the summary
// of an interrupted run is still drawn.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.started = true

	// The ingest command owns SIGINT; the model forwards Ctrl+C to it.
	r.program = tea.NewProgram(r.model, tea.WithOutput(r.cfg.Output), tea.WithoutSignalHandler())
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.send(progressMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(stopTimeout):
		r.program.Kill()
	}
	return nil
}

type (
	progressMsg ProgressEvent
	errorMsg    ErrorEvent
	completeMsg CompletionStats
)

// ingestModel is the bubbletea model of one ingest run.
type ingestModel struct {
	inputDir string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int

	stage     Stage
	current   int
	total     int
	file      string
	status    string
	errors    int
	warnings  int
	lastIssue string

	stopping  bool
	complete  bool
	stats     CompletionStats
	interrupt func()
}

func newIngestModel(inputDir string, styles Styles) *ingestModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Success

	return &ingestModel{
		inputDir: inputDir,
		styles:   styles,
		spinner:  s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		width:     80,
		interrupt: raiseInterrupt,
	}
}

// raiseInterrupt delivers SIGINT to this process. The terminal is in raw
// mode while the program runs, so Ctrl+C arrives as a key instead.
func raiseInterrupt() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(os.Interrupt)
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.stopping {
			m.stopping = true
			m.interrupt()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)

	case progressMsg:
		m.stage = msg.Stage
		if msg.Total > 0 {
			m.current, m.total = msg.Current, msg.Total
		}
		if msg.CurrentFile != "" {
			m.file = msg.CurrentFile
		}
		if msg.Message != "" {
			m.status = msg.Message
		}

	case errorMsg:
		if msg.IsWarn {
			m.warnings++
		} else {
			m.errors++
		}
		m.lastIssue = issueLine(ErrorEvent(msg))

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	sections := []string{m.renderStages(), m.renderProgress()}
	if m.status != "" {
		sections = append(sections, m.styles.Value.Render(m.status))
	}
	if m.file != "" {
		sections = append(sections, m.styles.Dim.Render(truncateFilePath(m.file, width-2)))
	}
	if m.lastIssue != "" {
		sections = append(sections, m.styles.Dim.Render(truncateFilePath(m.lastIssue, width-2)))
	}

	title := "recordex"
	if m.inputDir != "" {
		title += " • " + m.inputDir
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		m.styles.Panel.Width(width).Render(strings.Join(sections, "\n")),
		m.renderStatusBar(),
	) + "\n"
}

// renderStages shows finished, active and pending pipeline stages.
func (m *ingestModel) renderStages() string {
	stages := []Stage{StageScanning, StageIngesting, StageMaintenance}
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s < m.stage:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == m.stage:
			parts = append(parts, m.styles.Stage.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *ingestModel) renderProgress() string {
	if m.total == 0 {
		return m.styles.Dim.Render("Preparing...")
	}
	percent := float64(m.current) / float64(m.total)
	return fmt.Sprintf("%s  %3.0f%%\n%s",
		m.bar.ViewAs(percent),
		percent*100,
		m.styles.Label.Render(numbers.Sprintf("%d / %d files", m.current, m.total)))
}

func (m *ingestModel) renderStatusBar() string {
	var parts []string
	if m.warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("! %d warnings", m.warnings)))
	}
	if m.errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.errors)))
	}
	hint := "ctrl+c to stop"
	if m.stopping {
		hint = "stopping after the current record..."
	}
	parts = append(parts, m.styles.Dim.Render(hint))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *ingestModel) renderComplete() string {
	title := m.styles.Success.Render("✓ " + headline(m.stats))
	if m.stats.Interrupted {
		title = m.styles.Warning.Render("! " + headline(m.stats))
	}

	lines := []string{title}
	for _, row := range summaryRows(m.stats) {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			m.styles.Label.Render(row.Label),
			m.styles.Value.Render(row.Value)))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

func issueLine(e ErrorEvent) string {
	if e.File == "" {
		return fmt.Sprint(e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// truncateFilePath shortens path to at most maxLen bytes, keeping the file
// name and as much of the directory as fits.
func truncateFilePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}
	i := strings.LastIndex(path, "/")
	name := path[i+1:]
	if i < 0 || len(name)+4 > maxLen {
		return "..." + path[len(path)-maxLen+3:]
	}
	room := maxLen - len(name) - 4
	dir := path[:i]
	return "..." + dir[len(dir)-room:] + "/" + name
}

var _ Renderer = (*TUIRenderer)(nil)
