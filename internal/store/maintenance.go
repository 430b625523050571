package store

import (
	"context"
	"time"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

// MaintenanceStep is one best-effort post-ingest operation.
type MaintenanceStep struct {
	Name string
	SQL  string
}

// MaintenanceSteps run in order after the final commit. VACUUM goes last
// because it needs the WAL folded back and no open transaction.
var MaintenanceSteps = []MaintenanceStep{
	{Name: "fts_optimize", SQL: `INSERT INTO chunks_fts(chunks_fts) VALUES('optimize')`},
	{Name: "pragma_optimize", SQL: `PRAGMA optimize`},
	{Name: "analyze", SQL: `ANALYZE`},
	{Name: "vacuum", SQL: `VACUUM`},
}

// StepResult records the outcome of one maintenance step.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Maintain runs every step independently. A failing step never stops the
// others; failures come back as ERR_504 warnings in the results.
func (s *DB) Maintain(ctx context.Context) []StepResult {
	results := make([]StepResult, 0, len(MaintenanceSteps))
	for _, step := range MaintenanceSteps {
		start := time.Now()
		_, err := s.db.ExecContext(ctx, step.SQL)
		r := StepResult{Name: step.Name, Duration: time.Since(start)}
		if err != nil {
			r.Err = rxerrors.New(rxerrors.ErrCodeMaintenance, step.Name+" failed", err).
				WithDetail("step", step.Name)
		}
		results = append(results, r)
	}
	return results
}
