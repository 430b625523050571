package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/output"
	"github.com/Aman-CERP/recordex/internal/telemetry"
)

type queriesOptions struct {
	db         string
	run        string
	top        int
	jsonOutput bool
}

func newQueriesCmd(a *app) *cobra.Command {
	var opts queriesOptions

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show local query telemetry for a run",
		Long: `Show what has been searched in one run: query totals per mode, the share
of queries without results, latency buckets, the most frequent terms and
recent zero-result queries.

Telemetry is recorded by search and serve while telemetry.enabled is true
and is kept in the database file only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueries(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().StringVar(&opts.run, "run", "content", "Run to report")
	cmd.Flags().IntVar(&opts.top, "top", 10, "Number of top terms to show")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runQueries(ctx context.Context, cmd *cobra.Command, a *app, opts queriesOptions) error {
	run, err := requireRun(opts.run)
	if err != nil {
		return err
	}
	if opts.top < 0 {
		return rxerrors.ValidationError("--top must be >= 0", nil)
	}

	db, err := a.openStore(ctx, a.dbPath(opts.db), true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sink, err := telemetry.NewSQLiteStore(ctx, db.SQL(), a.cfg.Telemetry.ZeroResults)
	if err != nil {
		return rxerrors.Wrap(rxerrors.ErrCodeStoreWrite, err)
	}
	report, err := sink.Report(ctx, run, opts.top)
	if err != nil {
		return rxerrors.Wrap(rxerrors.ErrCodeSearch, err)
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(report)
	}
	printQueryReport(out, report)
	return nil
}

func printQueryReport(out *output.Writer, r telemetry.Snapshot) {
	if r.Total == 0 {
		out.Status("", fmt.Sprintf("No queries recorded for run %q", r.RunID))
		return
	}

	out.Field("Run", r.RunID)
	out.Field("Since", r.Since.Format("2006-01-02"))
	out.Field("Queries", fmt.Sprintf("%d (chunks %d, docs %d)", r.Total, r.Modes[telemetry.ModeChunks], r.Modes[telemetry.ModeDocs]))
	out.Field("Zero results", fmt.Sprintf("%d (%.1f%%)", r.ZeroResults, r.ZeroResultRate()))

	buckets := make([]string, 0, len(telemetry.Buckets))
	for _, b := range telemetry.Buckets {
		buckets = append(buckets, fmt.Sprintf("%s=%d", b, r.Latency[b]))
	}
	out.Field("Latency", strings.Join(buckets, " "))

	if len(r.TopTerms) > 0 {
		out.Newline()
		out.Status("", "Top terms:")
		for i, tc := range r.TopTerms {
			out.Hit(i+1, fmt.Sprintf("%s  (%d)", tc.Term, tc.Count), "")
		}
	}
	if len(r.RecentZero) > 0 {
		out.Newline()
		out.Status("", "Recent zero-result queries:")
		for i, q := range r.RecentZero {
			out.Hit(i+1, q, "")
		}
	}
}
