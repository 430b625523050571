// Package ingest turns record dump files into documents, chunks and
// full-text entries of one run.
//
// The pipeline is strictly sequential. Per file: read, sanitize and split
// into blocks. Per block: resolve the document id, strip noise, hash the
// clean text, skip duplicates of the run, then upsert the document and
// insert its paragraph chunks. Writes go through one store.Writer that
// commits every CommitEvery written documents.
package ingest
