// Package logging configures structured slog logging for recordex.
//
// Records are written as JSON to a size-rotated file under ~/.recordex/logs/
// and, when requested, teed to stderr in human-readable text form so that
// ingest progress output on stdout stays clean.
package logging
