package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/telemetry"
)

// dbPath returns the --db value when given, else store.path.
func (a *app) dbPath(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Store.Path
}

// openStore opens the database with the configured driver and pragmas.
// Read commands pass mustExist so a typo in --db is not silently created.
func (a *app) openStore(ctx context.Context, path string, mustExist bool) (*store.DB, error) {
	return store.Open(ctx, store.Options{
		Path:          path,
		Driver:        a.cfg.Store.Driver,
		BusyTimeoutMS: a.cfg.Store.BusyTimeoutMS,
		CacheMB:       a.cfg.Store.CacheMB,
		MustExist:     mustExist,
	})
}

// queryCollector returns a telemetry collector persisting into db, or nil
// when telemetry is disabled or its tables cannot be created. Telemetry
// never fails a search.
func (a *app) queryCollector(ctx context.Context, db *store.DB, run string) *telemetry.Collector {
	tc := a.cfg.Telemetry
	if !tc.Enabled {
		return nil
	}
	sink, err := telemetry.NewSQLiteStore(ctx, db.SQL(), tc.ZeroResults)
	if err != nil {
		a.logger.Warn("telemetry_disabled", slog.String("error", err.Error()))
		return nil
	}
	// Validate already rejected a malformed interval.
	interval, _ := tc.Interval()
	return telemetry.New(run, sink, telemetry.Options{
		TopTerms:      tc.TopTerms,
		ZeroResults:   tc.ZeroResults,
		FlushInterval: interval,
	}, a.logger)
}
