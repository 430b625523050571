package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	upsertDocSQL = `
		INSERT INTO docs(run_id, doc_id, meta_json, text_sha256, text_chars)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, doc_id) DO UPDATE SET
			meta_json = excluded.meta_json,
			text_sha256 = excluded.text_sha256,
			text_chars = excluded.text_chars`

	insertFTSSQL = `INSERT OR IGNORE INTO chunks_fts(rowid, text) VALUES (?, ?)`
)

// ErrWriterClosed is returned by Writer methods after Finish or Abort.
var ErrWriterClosed = errors.New("index writer is closed")

// Writer owns the ingest transaction. Everything written between two
// checkpoints becomes durable together.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	db       *DB
	inserter ChunkInserter

	tx      *sql.Tx
	docStmt *sql.Stmt
	ftsStmt *sql.Stmt

	checkpoints int
}

// NewWriter begins the first transaction.
func NewWriter(ctx context.Context, db *DB, inserter ChunkInserter) (*Writer, error) {
	w := &Writer{db: db, inserter: inserter}
	if err := w.begin(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) begin(ctx context.Context) error {
	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	docStmt, err := tx.PrepareContext(ctx, upsertDocSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare document upsert: %w", err)
	}
	ftsStmt, err := tx.PrepareContext(ctx, insertFTSSQL)
	if err != nil {
		_ = docStmt.Close()
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare FTS insert: %w", err)
	}
	if err := w.inserter.Bind(ctx, tx); err != nil {
		_ = ftsStmt.Close()
		_ = docStmt.Close()
		_ = tx.Rollback()
		return err
	}
	w.tx, w.docStmt, w.ftsStmt = tx, docStmt, ftsStmt
	return nil
}

func (w *Writer) closeStmts() {
	if w.docStmt != nil {
		_ = w.docStmt.Close()
		w.docStmt = nil
	}
	if w.ftsStmt != nil {
		_ = w.ftsStmt.Close()
		w.ftsStmt = nil
	}
	_ = w.inserter.Close()
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return ErrWriterClosed
	}
	w.closeStmts()
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// QueryRowContext runs a read inside the open transaction, so uncommitted
// rows of this run are visible.
func (w *Writer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if w.tx == nil {
		return w.db.db.QueryRowContext(ctx, query, args...)
	}
	return w.tx.QueryRowContext(ctx, query, args...)
}

// UpsertDocument inserts d or overwrites metadata, hash and length of the
// existing (run_id, doc_id) row.
func (w *Writer) UpsertDocument(ctx context.Context, d Document) error {
	if w.tx == nil {
		return ErrWriterClosed
	}
	if _, err := w.docStmt.ExecContext(ctx, d.RunID, d.DocID, d.MetaJSON, d.TextSHA256, d.TextChars); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", d.DocID, err)
	}
	return nil
}

// InsertChunk writes c and, only if the row is new, its full-text entry.
// A uid that already exists is left untouched.
func (w *Writer) InsertChunk(ctx context.Context, c Chunk) (ChunkResult, error) {
	if w.tx == nil {
		return ChunkResult{}, ErrWriterClosed
	}
	res, err := w.inserter.Insert(ctx, c)
	if err != nil || !res.Inserted {
		return res, err
	}
	if _, err := w.ftsStmt.ExecContext(ctx, res.ID, c.Text); err != nil {
		return ChunkResult{}, fmt.Errorf("failed to index chunk %s: %w", c.UID, err)
	}
	return res, nil
}

// Checkpoint commits, lets SQLite fold the WAL back without blocking
// readers, then opens the next transaction.
func (w *Writer) Checkpoint(ctx context.Context) error {
	if err := w.commit(); err != nil {
		return err
	}
	if _, err := w.db.db.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	w.checkpoints++
	return w.begin(ctx)
}

// Checkpoints returns how many intermediate commits have happened.
func (w *Writer) Checkpoints() int {
	return w.checkpoints
}

// Finish commits the last transaction and truncates the WAL. The writer
// cannot be used afterwards.
func (w *Writer) Finish(ctx context.Context) error {
	if err := w.commit(); err != nil {
		return err
	}
	if _, err := w.db.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	return nil
}

// Abort rolls back everything since the last checkpoint.
func (w *Writer) Abort() error {
	if w.tx == nil {
		return nil
	}
	w.closeStmts()
	err := w.tx.Rollback()
	w.tx = nil
	return err
}
