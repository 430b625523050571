package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/server"
)

type serveOptions struct {
	db   string
	run  string
	addr string
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API for one run",
		Long: `Serve a JSON API over one run of the database:

  GET  /api/search?q=&mode=chunks|docs&limit=&offset=
  GET  /api/doc?doc_id=&max_chars=
  POST /api/mark   {"doc_id": "...", "state": true}
  GET  /api/marks
  GET  /api/export?format=json|csv
  GET  /api/stats
  GET  /api/queries   (when telemetry.enabled)

Queries use SQLite FTS5 syntax. Ctrl+C shuts the server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "SQLite database file (default store.path)")
	cmd.Flags().StringVar(&opts.run, "run", "content", "Run to search and mark")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default server.addr, 127.0.0.1:8787)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app, opts serveOptions) error {
	run, err := requireRun(opts.run)
	if err != nil {
		return err
	}

	cfg := a.cfg.Server
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	ttl, err := cfg.TTL()
	if err != nil {
		return rxerrors.ConfigError("invalid server.cache_ttl", err)
	}

	db, err := a.openStore(ctx, a.dbPath(opts.db), true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	srv := server.New(db, server.Config{
		RunID:     run,
		MaxLimit:  cfg.MaxLimit,
		CacheSize: cfg.CacheSize,
		CacheTTL:  ttl,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Queries:   a.queryCollector(ctx, db, run),
	}, a.logger)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving run %q from %s on http://%s (Ctrl+C to stop)\n", run, db.Path(), ln.Addr())
	return srv.Serve(ctx, ln)
}
