package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS query_mode_stats (
	run_id TEXT NOT NULL,
	date TEXT NOT NULL,
	mode TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	zero_results INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, date, mode)
);

CREATE TABLE IF NOT EXISTS query_latency_stats (
	run_id TEXT NOT NULL,
	date TEXT NOT NULL,
	bucket TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, date, bucket)
);

CREATE TABLE IF NOT EXISTS query_terms (
	run_id TEXT NOT NULL,
	term TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	last_seen TEXT NOT NULL,
	PRIMARY KEY (run_id, term)
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(run_id, count DESC);

-- Ring of recent zero-result queries, trimmed on every save.
CREATE TABLE IF NOT EXISTS zero_result_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	query TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_zero_result_run ON zero_result_queries(run_id, id);
`

// SQLiteStore persists telemetry in the record database.
type SQLiteStore struct {
	db       *sql.DB
	keepZero int
}

// NewSQLiteStore creates the telemetry tables when missing. keepZero bounds
// the zero-result queries kept per run.
func NewSQLiteStore(ctx context.Context, db *sql.DB, keepZero int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if keepZero <= 0 {
		keepZero = 100
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create telemetry schema: %w", err)
	}
	return &SQLiteStore{db: db, keepZero: keepZero}, nil
}

// Save adds d to the stored aggregates in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, runID string, d Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin telemetry transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for mode, n := range d.Modes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO query_mode_stats (run_id, date, mode, count, zero_results)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, date, mode) DO UPDATE SET
				count = count + excluded.count,
				zero_results = zero_results + excluded.zero_results`,
			runID, d.Date, string(mode), n, d.Zero[mode]); err != nil {
			return fmt.Errorf("failed to save mode counts: %w", err)
		}
	}

	for bucket, n := range d.Latency {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO query_latency_stats (run_id, date, bucket, count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, date, bucket) DO UPDATE SET count = count + excluded.count`,
			runID, d.Date, string(bucket), n); err != nil {
			return fmt.Errorf("failed to save latency counts: %w", err)
		}
	}

	for term, n := range d.Terms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO query_terms (run_id, term, count, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, term) DO UPDATE SET
				count = count + excluded.count,
				last_seen = excluded.last_seen`,
			runID, term, n, d.Date); err != nil {
			return fmt.Errorf("failed to save term counts: %w", err)
		}
	}

	if len(d.ZeroQueries) > 0 {
		for _, q := range d.ZeroQueries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO zero_result_queries (run_id, query, created_at) VALUES (?, ?, ?)`,
				runID, q, d.Date); err != nil {
				return fmt.Errorf("failed to save zero-result query: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM zero_result_queries
			WHERE run_id = ? AND id NOT IN (
				SELECT id FROM zero_result_queries WHERE run_id = ? ORDER BY id DESC LIMIT ?
			)`, runID, runID, s.keepZero); err != nil {
			return fmt.Errorf("failed to trim zero-result queries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit telemetry: %w", err)
	}
	return nil
}

// Report returns the stored telemetry of runID with at most topN terms.
// Repeats are tracked per session and are always zero here.
func (s *SQLiteStore) Report(ctx context.Context, runID string, topN int) (Snapshot, error) {
	snap := Snapshot{
		RunID:      runID,
		Modes:      map[Mode]int64{},
		Latency:    map[LatencyBucket]int64{},
		TopTerms:   []TermCount{},
		RecentZero: []string{},
	}

	var first sql.NullString
	if err := s.db.QueryRowContext(ctx, `
		SELECT MIN(date), COALESCE(SUM(count), 0), COALESCE(SUM(zero_results), 0)
		FROM query_mode_stats WHERE run_id = ?`, runID).
		Scan(&first, &snap.Total, &snap.ZeroResults); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read query totals: %w", err)
	}
	if first.Valid {
		if t, err := time.Parse(time.DateOnly, first.String); err == nil {
			snap.Since = t
		}
	}

	if err := s.sumBy(ctx, `
		SELECT mode, SUM(count) FROM query_mode_stats WHERE run_id = ? GROUP BY mode`, runID,
		func(k string, n int64) { snap.Modes[Mode(k)] = n }); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read mode counts: %w", err)
	}
	if err := s.sumBy(ctx, `
		SELECT bucket, SUM(count) FROM query_latency_stats WHERE run_id = ? GROUP BY bucket`, runID,
		func(k string, n int64) { snap.Latency[LatencyBucket(k)] = n }); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read latency counts: %w", err)
	}

	if topN > 0 {
		if err := s.scanRows(ctx, `
			SELECT term, count FROM query_terms WHERE run_id = ?
			ORDER BY count DESC, term ASC LIMIT ?`,
			func(rows *sql.Rows) error {
				var tc TermCount
				if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
					return err
				}
				snap.TopTerms = append(snap.TopTerms, tc)
				return nil
			}, runID, topN); err != nil {
			return Snapshot{}, fmt.Errorf("failed to read top terms: %w", err)
		}
	}

	if err := s.scanRows(ctx, `
		SELECT query FROM zero_result_queries WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		func(rows *sql.Rows) error {
			var q string
			if err := rows.Scan(&q); err != nil {
				return err
			}
			snap.RecentZero = append(snap.RecentZero, q)
			return nil
		}, runID, s.keepZero); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read zero-result queries: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) sumBy(ctx context.Context, query, runID string, add func(string, int64)) error {
	return s.scanRows(ctx, query, func(rows *sql.Rows) error {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		add(k, n)
		return nil
	}, runID)
}

// scanRows runs query and closes its rows before returning; the record
// database allows a single open connection.
func (s *SQLiteStore) scanRows(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
