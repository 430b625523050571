// Package cmd provides the CLI commands for recordex.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/recordex/internal/config"
	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/logging"
	"github.com/Aman-CERP/recordex/internal/profiling"
	"github.com/Aman-CERP/recordex/pkg/version"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

// app carries state shared by every subcommand of one invocation.
type app struct {
	configPath string
	debug      bool
	profile    profiling.Options

	cfg     *config.Config
	logger  *slog.Logger
	session *profiling.Session
	cleanup func()
}

// NewRootCmd creates the root command for the recordex CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "recordex",
		Short: "Turn concatenated record dumps into a searchable SQLite corpus",
		Long: `recordex splits plain-text dumps on "--- SOURCE: <label> ---" markers,
strips boilerplate, deduplicates records per run, chunks them by paragraph
and stores them in SQLite with an FTS5 full-text index.

  recordex index --input ./dumps --db records.sqlite --run content
  recordex search "flight manifest" --run content
  recordex serve --run content`,
		Version:           version.Short(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	cmd.SetVersionTemplate("recordex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default .recordex.yaml in the working directory)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging and mirror the log to stderr")
	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newRunsCmd(a))
	cmd.AddCommand(newQueriesCmd(a))
	cmd.AddCommand(newEvalCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd, a
}

// setup loads configuration, then starts logging and profiling.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(".", a.configPath)
	if err != nil {
		return rxerrors.ConfigError("cannot load configuration", err).
			WithSuggestion("Run 'recordex config show' to inspect the effective settings")
	}
	a.cfg = cfg

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if a.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is not critical for the CLI.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
		logger, cleanup = slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	a.logger = logger.With(slog.String("command", cmd.Name()))
	a.cleanup = cleanup
	slog.SetDefault(logger)
	a.logger.Debug("command_started", slog.String("version", version.Short()), slog.String("log_file", logCfg.FilePath))

	if a.profile.Enabled() {
		s, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.session = s
	}
	return nil
}

// teardown stops profiling and closes the log file. Safe to call twice.
func (a *app) teardown() error {
	var err error
	if a.session != nil {
		err = a.session.Stop()
		a.session = nil
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return err
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	cmd, a := newRootCmd()
	err := cmd.Execute()
	if terr := a.teardown(); err == nil {
		err = terr
	}
	if err != nil {
		printError(os.Stderr, err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case rxerrors.HasCode(err, rxerrors.ErrCodeInterrupted):
		return exitInterrupted
	default:
		return 1
	}
}

// printError writes coded errors with their hint and code, and anything
// else (flag parsing, usage) as a single line.
func printError(w io.Writer, err error) {
	var e *rxerrors.Error
	if errors.As(err, &e) {
		_, _ = fmt.Fprint(w, rxerrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// requireRun trims a --run value and rejects an empty label.
func requireRun(run string) (string, error) {
	run = strings.TrimSpace(run)
	if run == "" {
		return "", rxerrors.New(rxerrors.ErrCodeInvalidRun, "--run must not be empty", nil).
			WithSuggestion("Pass a label such as --run content")
	}
	return run, nil
}
