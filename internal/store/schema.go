package store

import (
	"context"
	"fmt"
)

// SchemaVersion is bumped whenever schemaSQL changes shape.
const SchemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS docs (
	run_id TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	meta_json TEXT,
	text_sha256 TEXT,
	text_chars INTEGER,
	PRIMARY KEY (run_id, doc_id)
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	run_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	order_index INTEGER,
	doc_id TEXT,
	source_file TEXT,
	text TEXT
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(run_id, doc_id, order_index);
CREATE INDEX IF NOT EXISTS idx_docs_hash ON docs(run_id, text_sha256);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_uid ON chunks(uid);

-- External content: the index stores no text of its own.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	text,
	content='chunks',
	content_rowid='id',
	tokenize="unicode61"
);

CREATE TABLE IF NOT EXISTS marks (
	run_id TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	created_at TEXT DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_marks_run ON marks(run_id, created_at);
`

func (s *DB) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// CurrentSchemaVersion returns the highest recorded schema version.
func (s *DB) CurrentSchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
