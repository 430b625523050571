package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/ingest"
	"github.com/Aman-CERP/recordex/internal/output"
	"github.com/Aman-CERP/recordex/internal/preflight"
	"github.com/Aman-CERP/recordex/internal/scanner"
	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/ui"
	"github.com/Aman-CERP/recordex/internal/watcher"
)

// minChunkSize is the smallest chunk target accepted from --chunk-size.
const minChunkSize = 200

type indexOptions struct {
	input     string
	db        string
	run       string
	dedupe    string
	chunkSize int
	reset     bool
	noTUI     bool
	watch     bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest a directory of record dumps",
		Long: `Ingest every matching file under --input into the database.

Each file is split on "--- SOURCE: <label> ---" markers. Every record gets a
stable doc_id (EFTA number or a hash of its label and file), is stripped of
page markers and boilerplate, deduplicated by content within the run, and
chunked by paragraph into the FTS5 index.

Work is committed every ingest.commit_every documents. Ctrl+C stops at the
next record and keeps everything written so far; re-running the same
command skips existing chunks and overwrites documents.

Chunk ids restart at chunk_00000000 on every invocation. Ingesting different
input into a run that already has rows, without --reset, stores the new
documents but not their chunks; each one is logged as chunk_uid_conflict.
Use a fresh --run or --reset when the input changes.

With --watch the command keeps running after the first pass and rebuilds the
run whenever a matching file under --input changes. The writer lock is held
until Ctrl+C.`,
		Example: `  recordex index --input ./dumps
  recordex index --input ./dumps --db corpus.sqlite --run batch2 --dedupe 0
  recordex index --input ./dumps --run content --reset
  recordex index --input ./dumps --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Directory of dump files (required)")
	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database file (default store.path, records.sqlite)")
	cmd.Flags().StringVar(&opts.run, "run", "content", "Run label stored on every row")
	cmd.Flags().StringVar(&opts.dedupe, "dedupe", "1", "Skip records whose clean text is already stored in the run: 1 or 0")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 2000, "Paragraph chunk target size in characters")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Delete the run's documents, chunks and index entries first")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable styled output, use plain text")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and re-ingest the run when input files change")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, opts indexOptions) error {
	run, err := requireRun(opts.run)
	if err != nil {
		return err
	}
	if err := applyIndexFlags(cmd, a, opts); err != nil {
		return err
	}

	dbPath := a.dbPath(opts.db)
	log := a.logger.With(slog.String("db", dbPath), slog.String("run", run))

	checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
	results := checker.RunAll(ctx, opts.input, dbPath)
	for _, r := range results {
		log.Debug("preflight_check", slog.String("check", r.Name), slog.String("status", r.Status.String()), slog.String("message", r.Message))
	}
	if err := checker.Err(results); err != nil {
		return err
	}

	lock, err := store.AcquireWriterLock(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("lock_release_failed", slog.String("error", err.Error()))
		}
	}()

	db, err := a.openStore(ctx, dbPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := ingestOnce(ctx, cmd, a, db, opts.input, run, opts.reset, opts.noTUI); err != nil || !opts.watch {
		return err
	}
	return watchInput(ctx, cmd, a, db, opts, run)
}

// ingestOnce runs one ingestion pass with its own progress renderer.
func ingestOnce(ctx context.Context, cmd *cobra.Command, a *app, db *store.DB, input, run string, reset, noTUI bool) error {
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithInputDir(input)))
	if err := renderer.Start(ctx); err != nil {
		a.logger.Warn("renderer_start_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	runner, err := ingest.NewRunner(ingest.RunnerDependencies{
		Renderer: renderer,
		Config:   a.cfg,
		DB:       db,
		Logger:   a.logger,
	})
	if err != nil {
		return rxerrors.InternalError("cannot create ingest runner", err)
	}

	_, err = runner.Run(ctx, ingest.RunnerConfig{
		InputDir: input,
		RunID:    run,
		Reset:    reset,
	})
	return err
}

// watchInput rebuilds the run after every batch of input changes until ctx
// is cancelled. A failed pass is reported and the watch continues.
func watchInput(ctx context.Context, cmd *cobra.Command, a *app, db *store.DB, opts indexOptions, run string) error {
	w, err := watcher.New(watcher.Options{
		Scan: scanner.Options{
			Root:            opts.input,
			Extensions:      a.cfg.Ingest.Extensions,
			ExcludePatterns: a.cfg.Ingest.Exclude,
		},
		Logger: a.logger,
	})
	if err != nil {
		return rxerrors.New(rxerrors.ErrCodeInputMissing, "cannot watch input directory "+opts.input, err)
	}
	defer func() { _ = w.Close() }()

	out := output.New(cmd.OutOrStdout())
	out.Newline()
	out.Status("", fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", opts.input))

	return w.Run(ctx, func(ctx context.Context, b watcher.Batch) error {
		a.logger.Info("watch_reingest", slog.String("run", run), slog.Int("changed", len(b.Paths)))
		out.Status("", fmt.Sprintf("%d change(s) detected, rebuilding run %q", len(b.Paths), run))

		err := ingestOnce(ctx, cmd, a, db, opts.input, run, true, opts.noTUI)
		switch {
		case err == nil:
			return nil
		case rxerrors.HasCode(err, rxerrors.ErrCodeInterrupted):
			return err
		default:
			a.logger.Warn("watch_reingest_failed", rxerrors.LogAttrs(err)...)
			output.New(cmd.ErrOrStderr()).Warningf("re-ingest failed: %v", err)
			return nil
		}
	})
}

// applyIndexFlags layers explicitly set flags over the loaded config.
func applyIndexFlags(cmd *cobra.Command, a *app, opts indexOptions) error {
	cfg := a.cfg
	flags := cmd.Flags()

	if flags.Changed("dedupe") {
		switch opts.dedupe {
		case "1":
			cfg.Ingest.Dedupe = true
		case "0":
			cfg.Ingest.Dedupe = false
		default:
			return rxerrors.ValidationError(fmt.Sprintf("--dedupe must be 1 or 0, got %q", opts.dedupe), nil)
		}
	}

	if flags.Changed("chunk-size") {
		if opts.chunkSize < 1 {
			return rxerrors.ValidationError(fmt.Sprintf("--chunk-size must be >= 1, got %d", opts.chunkSize), nil)
		}
		cfg.Ingest.ChunkSize = opts.chunkSize
	}
	if cfg.Ingest.ChunkSize < minChunkSize {
		output.New(cmd.ErrOrStderr()).Warningf("chunk size %d is below %d; using %d", cfg.Ingest.ChunkSize, minChunkSize, minChunkSize)
		a.logger.Warn("chunk_size_raised", slog.Int("requested", cfg.Ingest.ChunkSize), slog.Int("used", minChunkSize))
		cfg.Ingest.ChunkSize = minChunkSize
	}
	return nil
}
