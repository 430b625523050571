package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/recordex/internal/chunk"
	"github.com/Aman-CERP/recordex/internal/config"
	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/record"
	"github.com/Aman-CERP/recordex/internal/scanner"
	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/ui"
)

// DefaultProgressEvery is how many files pass between progress lines.
const DefaultProgressEvery = 10

// errInterrupted stops the file loop at a block boundary.
var errInterrupted = errors.New("ingest interrupted")

// RunnerConfig configures one ingest invocation.
type RunnerConfig struct {
	// InputDir is scanned recursively for dump files.
	InputDir string

	// RunID labels every row written. It is trimmed; empty is rejected.
	RunID string

	// Reset deletes the run's existing rows before ingesting.
	Reset bool
}

// RunnerResult contains the outcome of an ingest.
type RunnerResult struct {
	// Run holds the invocation counters.
	Run *RunContext

	// Files is the number of files discovered.
	Files int

	// Inserter names the chunk insert strategy that was active.
	Inserter string

	// SQLiteVersion is the engine version reported by the database.
	SQLiteVersion string

	// Stats are the stored totals after the final commit.
	Stats store.RunStats

	// Reset counts rows removed before ingesting, when requested.
	Reset store.ResetResult

	Duration time.Duration

	// Errors counts files that could not be read.
	Errors int

	// Warnings counts failed maintenance steps.
	Warnings int

	// Interrupted is set when cancellation stopped the run early. Work up
	// to the last finished block is committed.
	Interrupted bool
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the loaded configuration (required).
	Config *config.Config

	// DB is the open record store (required).
	DB *store.DB

	// Chunker splits clean text. Defaults to a paragraph chunker with the
	// configured chunk size.
	Chunker chunk.Chunker

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// ProgressEvery overrides DefaultProgressEvery.
	ProgressEvery int
}

// Runner executes ingest runs with progress reporting.
type Runner struct {
	renderer      ui.Renderer
	config        *config.Config
	db            *store.DB
	chunker       chunk.Chunker
	cleaner       record.Cleaner
	dedupe        Deduplicator
	logger        *slog.Logger
	progressEvery int
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("store is required")
	}

	chunker := deps.Chunker
	if chunker == nil {
		chunker = chunk.NewParagraphChunker(deps.Config.Ingest.ChunkSize)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progressEvery := deps.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}

	return &Runner{
		renderer:      deps.Renderer,
		config:        deps.Config,
		db:            deps.DB,
		chunker:       chunker,
		cleaner:       record.Cleaner{NFKC: deps.Config.Ingest.NormalizeNFKC},
		dedupe:        Deduplicator{Enabled: deps.Config.Ingest.Dedupe},
		logger:        logger,
		progressEvery: progressEvery,
	}, nil
}

// Run executes the full ingest pipeline. On cancellation it commits what
// was written up to the last finished block, prints the summary and returns
// the result together with an ERR_506 error.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	startTime := time.Now()

	run, err := NewRunContext(cfg.RunID)
	if err != nil {
		return nil, err
	}
	log := r.logger.With(slog.String("ingest_id", run.IngestID), slog.String("run", run.RunID))

	if err := r.db.SelfCheck(ctx, run.RunID); err != nil {
		log.Error("ingest_self_check_failed", rxerrors.LogAttrs(err)...)
		return nil, err
	}

	caps, err := store.DetectCapabilities(ctx, r.db.SQL())
	if err != nil {
		return nil, rxerrors.New(rxerrors.ErrCodeInternal, "cannot detect SQLite capabilities", err)
	}
	forceLookup := r.config.Store.ForceLookupInsert
	result := &RunnerResult{
		Run:           run,
		Inserter:      store.InserterName(caps, forceLookup),
		SQLiteVersion: caps.Version,
	}

	log.Info("ingest_started",
		slog.String("input", cfg.InputDir),
		slog.Bool("dedupe", r.dedupe.Enabled),
		slog.Int("chunk_size", r.chunker.TargetSize()),
		slog.Int("commit_every", r.config.Ingest.CommitEvery),
		slog.String("sqlite_version", caps.Version),
		slog.String("inserter", result.Inserter))
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageScanning,
		Message: fmt.Sprintf("run=%q dedupe=%t chunk_size=%d sqlite=%s returning=%t",
			run.RunID, r.dedupe.Enabled, r.chunker.TargetSize(), caps.Version, result.Inserter == "returning"),
	})

	if cfg.Reset {
		reset, err := r.db.ResetRun(ctx, run.RunID)
		if err != nil {
			return nil, rxerrors.New(rxerrors.ErrCodeStoreWrite, "cannot reset run "+run.RunID, err)
		}
		result.Reset = reset
		log.Info("ingest_run_reset", slog.Int64("documents", reset.Documents), slog.Int64("chunks", reset.Chunks))
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageScanning,
			Message: fmt.Sprintf("Reset run %q: removed %d documents, %d chunks", run.RunID, reset.Documents, reset.Chunks),
		})
	}

	files, err := r.scanFiles(ctx, cfg.InputDir, log)
	if err != nil {
		return nil, err
	}
	result.Files = len(files)

	// Writes must finish even after cancellation so the committed prefix
	// ends on a block boundary.
	wctx := context.WithoutCancel(ctx)
	w, err := store.NewWriter(wctx, r.db, store.NewChunkInserter(caps, forceLookup))
	if err != nil {
		return nil, rxerrors.New(rxerrors.ErrCodeStoreWrite, "cannot start ingest transaction", err)
	}

	var fatal error
	for i, f := range files {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}
		if (i+1)%r.progressEvery == 0 {
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageIngesting,
				Current:     i + 1,
				Total:       len(files),
				CurrentFile: f.RelPath,
			})
		}

		err := r.ingestFile(ctx, wctx, w, run, f, log)
		if errors.Is(err, errInterrupted) {
			result.Interrupted = true
			break
		}
		if err != nil {
			fatal = err
			break
		}
	}

	if fatal != nil {
		if abortErr := w.Abort(); abortErr != nil {
			log.Error("ingest_rollback_failed", slog.String("error", abortErr.Error()))
		}
		werr := rxerrors.New(rxerrors.ErrCodeStoreWrite, "write failed; rolled back to the last checkpoint", fatal).
			WithDetail("checkpoints", fmt.Sprint(w.Checkpoints()))
		log.Error("ingest_failed", rxerrors.LogAttrs(werr)...)
		return nil, werr
	}

	if err := w.Finish(wctx); err != nil {
		werr := rxerrors.New(rxerrors.ErrCodeStoreWrite, "final commit failed", err)
		log.Error("ingest_failed", rxerrors.LogAttrs(werr)...)
		return nil, werr
	}

	if !result.Interrupted {
		result.Warnings = r.maintain(wctx, log)
	}

	stats, err := r.db.Stats(wctx, run.RunID)
	if err != nil {
		log.Warn("ingest_stats_failed", slog.String("error", err.Error()))
		stats = store.RunStats{RunID: run.RunID, DBPath: r.db.Path(), DBSizeBytes: r.db.SizeBytes()}
	}
	result.Stats = stats
	result.Errors = run.FilesFailed
	result.Duration = time.Since(startTime)

	r.renderer.Complete(ui.CompletionStats{
		Run:           run.RunID,
		Files:         run.FilesRead,
		FilesFailed:   run.FilesFailed,
		Documents:     stats.Documents,
		Chunks:        stats.Chunks,
		FTSEntries:    stats.FTSEntries,
		Duplicates:    run.Duplicates,
		AvgChunkChars: stats.AvgChunkChars,
		DBSizeBytes:   stats.DBSizeBytes,
		DBPath:        stats.DBPath,
		Duration:      result.Duration,
		Errors:        result.Errors,
		Warnings:      result.Warnings,
		Interrupted:   result.Interrupted,
	})

	log.Info("ingest_complete",
		slog.Int("files", len(files)),
		slog.Int("files_read", run.FilesRead),
		slog.Int("files_failed", run.FilesFailed),
		slog.Int64("documents_written", run.Documents),
		slog.Int64("chunks_produced", run.Chunks),
		slog.Int64("fts_entries_written", run.FTSEntries),
		slog.Int64("duplicates_skipped", run.Duplicates),
		slog.Int64("chunk_uid_conflicts", run.ConflictedDocs),
		slog.Int("checkpoints", w.Checkpoints()),
		slog.Bool("interrupted", result.Interrupted),
		slog.Int64("duration_ms", result.Duration.Milliseconds()))

	if result.Interrupted {
		return result, rxerrors.New(rxerrors.ErrCodeInterrupted,
			fmt.Sprintf("interrupted after %d documents; work up to the last block was committed", run.Documents), ctx.Err()).
			WithSuggestion("re-run the same command; existing chunks are skipped and documents are overwritten")
	}
	return result, nil
}

// scanFiles discovers input files.
func (r *Runner) scanFiles(ctx context.Context, root string, log *slog.Logger) ([]scanner.FileInfo, error) {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s...", root),
	})

	files, err := scanner.Scan(ctx, scanner.Options{
		Root:            root,
		Extensions:      r.config.Ingest.Extensions,
		ExcludePatterns: r.config.Ingest.Exclude,
	})
	if err != nil {
		return nil, rxerrors.New(rxerrors.ErrCodeInputMissing, "cannot scan input directory "+root, err).
			WithSuggestion("check that --input points to a readable directory")
	}

	log.Info("ingest_scan_complete", slog.Int("files", len(files)))
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Found %d files to process", len(files)),
	})
	return files, nil
}

// ingestFile processes every block of one file. Read failures are
// reported and swallowed; any returned error other than errInterrupted is
// a storage failure.
func (r *Runner) ingestFile(ctx, wctx context.Context, w *store.Writer, run *RunContext, f scanner.FileInfo, log *slog.Logger) error {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		run.FilesFailed++
		rerr := rxerrors.New(rxerrors.ErrCodeFileRead, "cannot read "+f.Path, err)
		log.Warn("ingest_file_failed", append(rxerrors.LogAttrs(rerr), slog.String("file", f.Path))...)
		r.renderer.AddError(ui.ErrorEvent{File: f.Path, Err: err})
		return nil
	}
	run.FilesRead++

	blocks := record.ParseBlocks(record.Sanitize(string(raw)))
	if len(blocks) == 0 {
		log.Debug("ingest_file_no_markers", slog.String("file", f.Path))
		return nil
	}

	for _, b := range blocks {
		if ctx.Err() != nil {
			return errInterrupted
		}
		if err := r.ingestBlock(wctx, w, run, b, f.Path, log); err != nil {
			return err
		}
	}
	return nil
}

// ingestBlock writes one block. It either completes or fails the run.
func (r *Runner) ingestBlock(ctx context.Context, w *store.Writer, run *RunContext, b record.Block, path string, log *slog.Logger) error {
	docID := record.ResolveDocID(b, path)
	clean := r.cleaner.Clean(b.Body)
	sha := record.SHA256Hex(clean)

	seen, err := r.dedupe.Seen(ctx, w, run.RunID, sha)
	if err != nil {
		return err
	}
	if seen {
		run.Duplicates++
		log.Debug("ingest_duplicate_skipped", slog.String("doc_id", docID), slog.String("file", path))
		return nil
	}

	chars := utf8.RuneCountInString(clean)
	meta, err := encodeMetadata(record.Metadata{
		DocID:            docID,
		Type:             record.GuessType(clean),
		SourceTxtFile:    path,
		RecordSource:     b.HeaderLine,
		MetadataSource:   b.MetadataSource,
		MetadataFilename: b.MetadataFilename,
		TextSHA256:       sha,
		Chars:            chars,
		ChunkMode:        record.ChunkModeParagraph,
		ChunkTargetSize:  r.chunker.TargetSize(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", docID, err)
	}

	if err := w.UpsertDocument(ctx, store.Document{
		RunID:      run.RunID,
		DocID:      docID,
		MetaJSON:   meta,
		TextSHA256: sha,
		TextChars:  chars,
	}); err != nil {
		return err
	}
	commitDue := run.documentWritten(r.config.Ingest.CommitEvery)

	parts := r.chunker.Chunk(clean)
	inserted := 0
	for i, part := range parts {
		chunkID, uid := run.NextChunkID()
		res, err := w.InsertChunk(ctx, store.Chunk{
			UID:        uid,
			RunID:      run.RunID,
			ChunkID:    chunkID,
			OrderIndex: i,
			DocID:      docID,
			SourceFile: path,
			Text:       part,
		})
		if err != nil {
			return err
		}
		if res.Inserted {
			run.FTSEntries++
			inserted++
		}
	}
	if len(parts) > 0 && inserted == 0 {
		// Chunk uids restart at zero per invocation, so a document new to
		// the run can land on uids already held by another document.
		var stored bool
		if err := w.QueryRowContext(ctx, hasChunksSQL, run.RunID, docID).Scan(&stored); err != nil {
			return fmt.Errorf("failed to check chunks of %s: %w", docID, err)
		}
		if !stored {
			run.ConflictedDocs++
			log.Warn("chunk_uid_conflict",
				slog.String("doc_id", docID),
				slog.String("run", run.RunID),
				slog.Int("chunks", len(parts)))
		}
	}

	if commitDue {
		if err := w.Checkpoint(ctx); err != nil {
			return err
		}
		log.Info("ingest_checkpoint",
			slog.Int64("documents", run.Documents),
			slog.Int64("chunks", run.Chunks),
			slog.Int64("duplicates", run.Duplicates))
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIngesting,
			Message: fmt.Sprintf("docs: %d | chunks: %d | dup_skipped: %d", run.Documents, run.Chunks, run.Duplicates),
		})
	}
	return nil
}

const hasChunksSQL = `SELECT EXISTS(SELECT 1 FROM chunks WHERE run_id = ? AND doc_id = ?)`

// encodeMetadata renders m as compact JSON with <, > and & left as is.
func encodeMetadata(m record.Metadata) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// maintain runs the best-effort maintenance steps and returns the number
// that failed.
func (r *Runner) maintain(ctx context.Context, log *slog.Logger) int {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageMaintenance,
		Message: "Optimizing FTS and database (optimize/analyze/vacuum)...",
	})

	failed := 0
	for _, step := range r.db.Maintain(ctx) {
		if step.Err != nil {
			failed++
			log.Warn("maintenance_step_failed",
				append(rxerrors.LogAttrs(step.Err), slog.Int64("duration_ms", step.Duration.Milliseconds()))...)
			r.renderer.AddError(ui.ErrorEvent{Err: step.Err, IsWarn: true})
			continue
		}
		log.Debug("maintenance_step_done",
			slog.String("step", step.Name),
			slog.Int64("duration_ms", step.Duration.Milliseconds()))
	}
	return failed
}
