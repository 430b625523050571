package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/recordex/internal/preflight"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		input   string
		db      string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the pre-ingest checks",
		Long: `Check that the input directory can be read, and that the database
location has enough free disk space and is writable. 'recordex index' runs
the same checks before it opens the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)
			results := checker.RunAll(cmd.Context(), input, a.dbPath(db))
			checker.PrintResults(results)
			return checker.Err(results)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Directory of dump files to check")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show hints for failed checks")

	return cmd
}
