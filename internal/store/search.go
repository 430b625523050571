package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

const searchChunksSQL = `
	SELECT
		c.doc_id,
		COALESCE(c.source_file, json_extract(d.meta_json, '$.source_txt_file'), ''),
		c.order_index,
		snippet(chunks_fts, 0, '[', ']', ' … ', 12),
		bm25(chunks_fts) AS score,
		m.doc_id IS NOT NULL
	FROM chunks_fts
	JOIN chunks c ON c.id = chunks_fts.rowid
	LEFT JOIN docs d ON d.run_id = c.run_id AND d.doc_id = c.doc_id
	LEFT JOIN marks m ON m.run_id = c.run_id AND m.doc_id = c.doc_id
	WHERE c.run_id = ? AND chunks_fts MATCH ?
	ORDER BY score
	LIMIT ? OFFSET ?`

// bm25() is only usable in the row context of an FTS query, so scores are
// computed per chunk in a materialized CTE and aggregated outside it.
const searchDocsSQL = `
	WITH h AS MATERIALIZED (
		SELECT rowid AS id, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
	)
	SELECT
		c.doc_id,
		MIN(COALESCE(c.source_file, json_extract(d.meta_json, '$.source_txt_file'), '')),
		MIN(h.score) AS best_score,
		COUNT(*),
		MAX(m.doc_id IS NOT NULL)
	FROM h
	JOIN chunks c ON c.id = h.id
	LEFT JOIN docs d ON d.run_id = c.run_id AND d.doc_id = c.doc_id
	LEFT JOIN marks m ON m.run_id = c.run_id AND m.doc_id = c.doc_id
	WHERE c.run_id = ?
	GROUP BY c.doc_id
	ORDER BY best_score, c.doc_id
	LIMIT ? OFFSET ?`

// SearchChunks runs an FTS5 MATCH over the run's chunks, best bm25 first.
// An invalid query expression yields an ERR_403 error.
func (s *DB) SearchChunks(ctx context.Context, runID, query string, limit, offset int) ([]ChunkHit, error) {
	hits := []ChunkHit{}
	query = strings.TrimSpace(query)
	if query == "" {
		return hits, nil
	}

	rows, err := s.db.QueryContext(ctx, searchChunksSQL, runID, query, limit, offset)
	if err != nil {
		return nil, searchError(query, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h ChunkHit
		if err := rows.Scan(&h.DocID, &h.SourceFile, &h.OrderIndex, &h.Snippet, &h.Score, &h.Marked); err != nil {
			return nil, searchError(query, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, searchError(query, err)
	}
	return hits, nil
}

// SearchDocs aggregates matching chunks per document.
func (s *DB) SearchDocs(ctx context.Context, runID, query string, limit, offset int) ([]DocHit, error) {
	hits := []DocHit{}
	query = strings.TrimSpace(query)
	if query == "" {
		return hits, nil
	}

	rows, err := s.db.QueryContext(ctx, searchDocsSQL, query, runID, limit, offset)
	if err != nil {
		return nil, searchError(query, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h DocHit
		if err := rows.Scan(&h.DocID, &h.SourceFile, &h.BestScore, &h.HitChunks, &h.Marked); err != nil {
			return nil, searchError(query, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, searchError(query, err)
	}
	return hits, nil
}

func searchError(query string, err error) error {
	if isFTSQueryError(err) {
		return rxerrors.New(rxerrors.ErrCodeInvalidQuery, "invalid search query", err).
			WithDetail("query", query).
			WithSuggestion("Quote phrases and avoid bare operators such as AND, OR, NOT, * or :")
	}
	return rxerrors.New(rxerrors.ErrCodeSearch, "search failed", err)
}

// Document reassembles docID from its chunks in order, joined by blank
// lines, stopping once maxChars runes of chunk text have been emitted.
func (s *DB) Document(ctx context.Context, runID, docID string, maxChars int) (DocText, error) {
	out := DocText{DocID: docID}

	var source sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(
				(SELECT MIN(source_file) FROM chunks WHERE run_id = ? AND doc_id = ?),
				(SELECT json_extract(meta_json, '$.source_txt_file') FROM docs WHERE run_id = ? AND doc_id = ?)
			),
			EXISTS(SELECT 1 FROM marks WHERE run_id = ? AND doc_id = ?)`,
		runID, docID, runID, docID, runID, docID).Scan(&source, &out.Marked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return DocText{}, fmt.Errorf("failed to load document %s: %w", docID, err)
	}
	out.SourceFile = source.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM chunks WHERE run_id = ? AND doc_id = ? ORDER BY order_index`, runID, docID)
	if err != nil {
		return DocText{}, fmt.Errorf("failed to load chunks of %s: %w", docID, err)
	}
	defer rows.Close()

	var sb strings.Builder
	total := 0
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return DocText{}, fmt.Errorf("failed to scan chunk: %w", err)
		}
		t := text.String
		if t == "" {
			continue
		}
		n := utf8.RuneCountInString(t)
		if total+n > maxChars {
			if remain := maxChars - total; remain > 0 {
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(firstRunes(t, remain))
			}
			out.Truncated = true
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(t)
		total += n
	}
	if err := rows.Err(); err != nil {
		return DocText{}, fmt.Errorf("failed to read chunks of %s: %w", docID, err)
	}

	out.Text = sb.String()
	return out, nil
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
