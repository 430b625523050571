package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Aman-CERP/recordex/internal/store"
)

const findByHashSQL = `SELECT doc_id FROM docs WHERE run_id = ? AND text_sha256 = ? LIMIT 1`

// Deduplicator reports whether clean text with the same hash was already
// written under the same run. Other runs never count.
type Deduplicator struct {
	Enabled bool
}

// Seen queries through q, which should be the open ingest transaction so
// rows not yet committed are visible.
func (d Deduplicator) Seen(ctx context.Context, q store.Queryer, runID, sha string) (bool, error) {
	if !d.Enabled {
		return false, nil
	}
	var docID string
	err := q.QueryRowContext(ctx, findByHashSQL, runID, sha).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up content hash: %w", err)
	}
	return true, nil
}
