package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/output"
	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/telemetry"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	db         string
	run        string
	mode       string // "chunks", "docs"
	limit      int
	offset     int
	jsonOutput bool
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over one run",
		Long: `Search the run's chunks with SQLite FTS5, best bm25 match first.

Chunk mode prints one snippet per matching chunk with hits in [brackets].
Doc mode groups matches per document.

Examples:
  recordex search flight
  recordex search '"flight manifest" NOT draft' --mode docs
  recordex search budget --run batch2 --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, a, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().StringVar(&opts.run, "run", "content", "Run to search")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "chunks", "Result mode: chunks, docs")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, query string, opts searchOptions) error {
	run, err := requireRun(opts.run)
	if err != nil {
		return err
	}
	mode := strings.ToLower(opts.mode)
	if mode != "chunks" && mode != "docs" {
		return rxerrors.ValidationError(fmt.Sprintf("--mode must be chunks or docs, got %q", opts.mode), nil)
	}
	if opts.limit < 1 || opts.offset < 0 {
		return rxerrors.ValidationError("--limit must be >= 1 and --offset >= 0", nil)
	}

	db, err := a.openStore(ctx, a.dbPath(opts.db), true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	out := output.New(cmd.OutOrStdout())
	a.logger.Info("search_started", slog.String("query", query), slog.String("mode", mode), slog.String("run", run))
	start := time.Now()

	if mode == "docs" {
		hits, err := db.SearchDocs(ctx, run, query, opts.limit, opts.offset)
		if err != nil {
			return err
		}
		a.recordSearch(ctx, db, run, telemetry.Event{Query: query, Mode: telemetry.ModeDocs, Results: len(hits), Latency: time.Since(start)})
		if opts.jsonOutput {
			return out.JSON(map[string]any{"items": hits})
		}
		printDocHits(out, query, hits, opts.offset)
		return nil
	}

	hits, err := db.SearchChunks(ctx, run, query, opts.limit, opts.offset)
	if err != nil {
		return err
	}
	a.recordSearch(ctx, db, run, telemetry.Event{Query: query, Mode: telemetry.ModeChunks, Results: len(hits), Latency: time.Since(start)})
	if opts.jsonOutput {
		return out.JSON(map[string]any{"items": hits})
	}
	printChunkHits(out, query, hits, opts.offset)
	return nil
}

// recordSearch stores one telemetry event. Failures are logged only.
func (a *app) recordSearch(ctx context.Context, db *store.DB, run string, e telemetry.Event) {
	c := a.queryCollector(ctx, db, run)
	if c == nil {
		return
	}
	c.Record(e)
	if err := c.Flush(ctx); err != nil {
		a.logger.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
	}
}

func printChunkHits(out *output.Writer, query string, hits []store.ChunkHit, offset int) {
	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", query))
		return
	}
	for i, h := range hits {
		out.Hit(offset+i+1, fmt.Sprintf("%s  #%d  %s%s  (%.2f)", h.DocID, h.OrderIndex, h.SourceFile, markSuffix(h.Marked), h.Score), h.Snippet)
	}
}

func printDocHits(out *output.Writer, query string, hits []store.DocHit, offset int) {
	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", query))
		return
	}
	for i, h := range hits {
		out.Hit(offset+i+1, fmt.Sprintf("%s  %s%s  hits=%d  (%.2f)", h.DocID, h.SourceFile, markSuffix(h.Marked), h.HitChunks, h.BestScore), "")
	}
}

func markSuffix(marked bool) string {
	if marked {
		return "  *marked*"
	}
	return ""
}
