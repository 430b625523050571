package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/recordex/internal/output"
	"github.com/Aman-CERP/recordex/internal/ui"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		db         string
		run        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored totals for a run",
		Long: `Show the documents, chunks, index entries, average chunk size and marks
stored for one run, without ingesting anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, a, db, run, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().StringVar(&run, "run", "content", "Run to summarise")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, a *app, dbFlag, runFlag string, jsonOutput bool) error {
	run, err := requireRun(runFlag)
	if err != nil {
		return err
	}

	db, err := a.openStore(ctx, a.dbPath(dbFlag), true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	st, err := db.Stats(ctx, run)
	if err != nil {
		return err
	}
	marks, err := db.Marks(ctx, run)
	if err != nil {
		return err
	}

	info := ui.StatusInfo{
		Run:           run,
		Documents:     st.Documents,
		Chunks:        st.Chunks,
		FTSEntries:    st.FTSEntries,
		Marks:         len(marks),
		AvgChunkChars: st.AvgChunkChars,
		DBSizeBytes:   st.DBSizeBytes,
		DBPath:        st.DBPath,
		Driver:        db.Driver(),
	}

	out := cmd.OutOrStdout()
	r := ui.NewStatusRenderer(out, ui.DetectNoColor() || !ui.IsTTY(out))
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		dbFlag     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs stored in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openStore(cmd.Context(), a.dbPath(dbFlag), true)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runs, err := db.Runs(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				if runs == nil {
					runs = []string{}
				}
				return out.JSON(map[string]any{"runs": runs})
			}
			if len(runs) == 0 {
				out.Status("", "No runs stored in "+db.Path())
				return nil
			}
			for _, r := range runs {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
