// Package store owns the SQLite database: schema, the transactional index
// writer used during ingest, best-effort maintenance, run statistics and
// the full-text read model used by search and serve.
//
// Chunks live in an ordinary table; chunks_fts is an FTS5 external-content
// index over chunks.text keyed by chunks.id.
package store
