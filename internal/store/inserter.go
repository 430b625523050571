package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	insertChunkReturningSQL = `
		INSERT INTO chunks(uid, run_id, chunk_id, order_index, doc_id, source_file, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO NOTHING
		RETURNING id`

	insertChunkIgnoreSQL = `
		INSERT OR IGNORE INTO chunks(uid, run_id, chunk_id, order_index, doc_id, source_file, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// ChunkInserter writes a chunk row and reports whether it was new. The two
// implementations differ only in how they learn the new rowid.
type ChunkInserter interface {
	// Bind prepares the inserter's statement on tx, replacing any statement
	// bound to an earlier transaction.
	Bind(ctx context.Context, tx *sql.Tx) error
	// Insert writes c. A uid conflict is not an error.
	Insert(ctx context.Context, c Chunk) (ChunkResult, error)
	// Close releases the bound statement.
	Close() error
}

// NewChunkInserter picks the RETURNING strategy when caps allow it and
// forceLookup is false, and the INSERT OR IGNORE fallback otherwise.
func NewChunkInserter(caps Capabilities, forceLookup bool) ChunkInserter {
	if caps.Returning && !forceLookup {
		return &returningInserter{}
	}
	return &lookupInserter{}
}

// InserterName names the strategy NewChunkInserter would choose, for logs.
func InserterName(caps Capabilities, forceLookup bool) string {
	if caps.Returning && !forceLookup {
		return "returning"
	}
	return "lookup"
}

type returningInserter struct {
	stmt *sql.Stmt
}

func (r *returningInserter) Bind(ctx context.Context, tx *sql.Tx) error {
	_ = r.Close()
	stmt, err := tx.PrepareContext(ctx, insertChunkReturningSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	r.stmt = stmt
	return nil
}

func (r *returningInserter) Insert(ctx context.Context, c Chunk) (ChunkResult, error) {
	var id int64
	err := r.stmt.QueryRowContext(ctx, chunkArgs(c)...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ChunkResult{}, nil
	}
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to insert chunk %s: %w", c.UID, err)
	}
	return ChunkResult{ID: id, Inserted: true}, nil
}

func (r *returningInserter) Close() error {
	if r.stmt == nil {
		return nil
	}
	err := r.stmt.Close()
	r.stmt = nil
	return err
}

type lookupInserter struct {
	stmt *sql.Stmt
}

func (l *lookupInserter) Bind(ctx context.Context, tx *sql.Tx) error {
	_ = l.Close()
	stmt, err := tx.PrepareContext(ctx, insertChunkIgnoreSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	l.stmt = stmt
	return nil
}

func (l *lookupInserter) Insert(ctx context.Context, c Chunk) (ChunkResult, error) {
	res, err := l.stmt.ExecContext(ctx, chunkArgs(c)...)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to insert chunk %s: %w", c.UID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return ChunkResult{}, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to read chunk rowid: %w", err)
	}
	return ChunkResult{ID: id, Inserted: true}, nil
}

func (l *lookupInserter) Close() error {
	if l.stmt == nil {
		return nil
	}
	err := l.stmt.Close()
	l.stmt = nil
	return err
}

func chunkArgs(c Chunk) []any {
	return []any{c.UID, c.RunID, c.ChunkID, c.OrderIndex, c.DocID, c.SourceFile, c.Text}
}

var (
	_ ChunkInserter = (*returningInserter)(nil)
	_ ChunkInserter = (*lookupInserter)(nil)
)
