package store

import (
	"context"
	"fmt"
)

// SetMark bookmarks docID when on is true, refreshing created_at if it was
// already marked, and removes the bookmark otherwise.
func (s *DB) SetMark(ctx context.Context, runID, docID string, on bool) error {
	var err error
	if on {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO marks(run_id, doc_id) VALUES (?, ?)
			ON CONFLICT(run_id, doc_id) DO UPDATE SET created_at = datetime('now')`, runID, docID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM marks WHERE run_id = ? AND doc_id = ?`, runID, docID)
	}
	if err != nil {
		return fmt.Errorf("failed to update mark on %s: %w", docID, err)
	}
	return nil
}

// Marks returns the run's bookmarks, newest first.
func (s *DB) Marks(ctx context.Context, runID string) ([]Mark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.doc_id, COALESCE(m.created_at, ''),
			COALESCE(MIN(c.source_file), json_extract(d.meta_json, '$.source_txt_file'), '')
		FROM marks m
		LEFT JOIN chunks c ON c.run_id = m.run_id AND c.doc_id = m.doc_id
		LEFT JOIN docs d ON d.run_id = m.run_id AND d.doc_id = m.doc_id
		WHERE m.run_id = ?
		GROUP BY m.doc_id, m.created_at
		ORDER BY m.created_at DESC, m.doc_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list marks: %w", err)
	}
	defer rows.Close()

	marks := []Mark{}
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.DocID, &m.CreatedAt, &m.SourceFile); err != nil {
			return nil, fmt.Errorf("failed to scan mark: %w", err)
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}
