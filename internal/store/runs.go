package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ResetResult counts rows removed by ResetRun.
type ResetResult struct {
	Documents int64
	Chunks    int64
}

// ResetRun deletes the run's index entries, chunks and documents in one
// transaction. Marks are user data and survive a reset.
func (s *DB) ResetRun(ctx context.Context, runID string) (ResetResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The FTS delete reads the indexed text back from chunks, so it must
	// run before the chunk rows go away.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE rowid IN (SELECT id FROM chunks WHERE run_id = ?)`, runID); err != nil {
		return ResetResult{}, fmt.Errorf("failed to delete index entries: %w", err)
	}

	var out ResetResult
	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE run_id = ?`, runID)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to delete chunks: %w", err)
	}
	out.Chunks, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM docs WHERE run_id = ?`, runID)
	if err != nil {
		return ResetResult{}, fmt.Errorf("failed to delete documents: %w", err)
	}
	out.Documents, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return ResetResult{}, fmt.Errorf("failed to commit reset: %w", err)
	}
	return out, nil
}

// Stats reports stored totals for runID. FTS entries are counted over the
// whole index since the index is shared by all runs.
func (s *DB) Stats(ctx context.Context, runID string) (RunStats, error) {
	st := RunStats{RunID: runID, DBPath: s.path}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs WHERE run_id = ?`, runID).Scan(&st.Documents); err != nil {
		return RunStats{}, fmt.Errorf("failed to count documents: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(LENGTH(text)) FROM chunks WHERE run_id = ?`, runID).Scan(&st.Chunks, &avg); err != nil {
		return RunStats{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	st.AvgChunkChars = avg.Float64

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks_fts_docsize`).Scan(&st.FTSEntries); err != nil {
		return RunStats{}, fmt.Errorf("failed to count index entries: %w", err)
	}

	st.DBSizeBytes = s.SizeBytes()
	return st, nil
}

// Runs lists the distinct run labels with at least one document.
func (s *DB) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM docs ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
