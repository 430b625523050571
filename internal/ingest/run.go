package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

// RunContext is the per-invocation state of an ingest: the run label and
// the counters reported in the summary. Nothing here is persisted.
type RunContext struct {
	// RunID partitions every stored row.
	RunID string

	// IngestID correlates the log records of this invocation.
	IngestID string

	FilesRead   int
	FilesFailed int

	// Documents counts document upserts, including overwrites.
	Documents int64
	// Chunks counts chunks produced, including inserts that were no-ops.
	Chunks int64
	// FTSEntries counts full-text rows written by this invocation.
	FTSEntries int64
	// Duplicates counts blocks skipped by the deduplicator.
	Duplicates int64
	// ConflictedDocs counts upserted documents none of whose chunks were
	// stored because their uids were already taken.
	ConflictedDocs int64

	docsSinceCommit int
}

// NewRunContext trims run and rejects an empty label before any I/O.
func NewRunContext(run string) (*RunContext, error) {
	run = strings.TrimSpace(run)
	if run == "" {
		return nil, rxerrors.New(rxerrors.ErrCodeInvalidRun, "--run must not be empty", nil).
			WithSuggestion("pass a non-empty label, e.g. --run content")
	}
	return &RunContext{
		RunID:    run,
		IngestID: uuid.NewString(),
	}, nil
}

// NextChunkID returns the id for the next chunk and advances the sequence.
// The sequence starts at zero for every invocation.
func (r *RunContext) NextChunkID() (chunkID, uid string) {
	chunkID = fmt.Sprintf("chunk_%08d", r.Chunks)
	r.Chunks++
	return chunkID, r.RunID + ":" + chunkID
}

// documentWritten records one upsert and reports whether a commit is due.
func (r *RunContext) documentWritten(commitEvery int) bool {
	r.Documents++
	r.docsSinceCommit++
	if commitEvery > 0 && r.docsSinceCommit >= commitEvery {
		r.docsSinceCommit = 0
		return true
	}
	return false
}
