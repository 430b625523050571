package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/output"
	"github.com/Aman-CERP/recordex/internal/validation"
)

type evalOptions struct {
	db         string
	run        string
	limit      int
	jsonOutput bool
}

func newEvalCmd(a *app) *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval <queries.yaml>",
		Short: "Check search quality against a query suite",
		Long: `Run a YAML suite of queries against one run and check that each tier 1 and
tier 2 query returns one of its expected doc ids within the top --limit
documents. Negative queries only have to be answered or rejected as
invalid FTS syntax.

  tier1:
    - id: T1-Q1
      query: flight
      expected: [EFTA00000001]
  negative:
    - id: N-1
      query: '"unbalanced'

The command exits non-zero when any query fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), cmd, a, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().StringVar(&opts.run, "run", "content", "Run to evaluate")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Documents inspected per query")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, a *app, suitePath string, opts evalOptions) error {
	run, err := requireRun(opts.run)
	if err != nil {
		return err
	}
	if opts.limit < 1 {
		return rxerrors.ValidationError("--limit must be >= 1", nil)
	}
	suite, err := validation.LoadQueries(suitePath)
	if err != nil {
		return err
	}

	db, err := a.openStore(ctx, a.dbPath(opts.db), true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := validation.NewValidator(db, run, opts.limit).RunAll(ctx, suite)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		if err := out.JSON(res); err != nil {
			return err
		}
	} else {
		printEvalTier(out, "Tier 1", res.Tier1)
		printEvalTier(out, "Tier 2", res.Tier2)
		printEvalTier(out, "Negative", res.Negative)
		out.Field("Tier 1", fmt.Sprintf("%d/%d", res.Tier1Pass, res.Tier1Total))
		out.Field("Tier 2", fmt.Sprintf("%d/%d", res.Tier2Pass, res.Tier2Total))
		out.Field("Negative", fmt.Sprintf("%d/%d", res.NegPass, res.NegTotal))
	}

	if failed := res.Failed(); failed > 0 {
		return rxerrors.New(rxerrors.ErrCodeSearch,
			fmt.Sprintf("%d of %d queries failed", failed, res.Total()), nil).
			WithSuggestion("Compare the returned doc ids with the expected ones, or re-index the run")
	}
	return nil
}

func printEvalTier(out *output.Writer, title string, results []validation.TestResult) {
	if len(results) == 0 {
		return
	}
	out.Status("", title+":")
	for _, r := range results {
		label := r.Spec.ID
		if r.Spec.Name != "" {
			label += " " + r.Spec.Name
		}
		switch {
		case r.Passed:
			out.Successf("%s (%s)", label, r.Duration.Round(time.Microsecond))
		case r.Error != "":
			out.Warningf("%s: %s", label, r.Error)
		default:
			out.Warningf("%s: expected %s, got [%s]", label,
				strings.Join(r.Spec.Expected, "|"), strings.Join(r.TopResults, ", "))
		}
	}
	out.Newline()
}
