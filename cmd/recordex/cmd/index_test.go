package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
	"github.com/Aman-CERP/recordex/internal/store"
	"github.com/Aman-CERP/recordex/internal/ui"
)

func TestIndexCmd_IngestsAndSummarises(t *testing.T) {
	// Given: a dump with two records and one duplicate
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")

	// When: indexing with plain output
	out, _, err := execute(t, "index", "--input", in, "--db", db, "--no-tui")

	// Then: the summary reports the stored documents and the duplicate
	require.NoError(t, err)
	assert.Contains(t, out, "Done: 1 files")
	assert.Contains(t, out, "Documents:           2")
	assert.Contains(t, out, "Duplicates skipped:  1")
	assert.EqualValues(t, 2, countRows(t, db, `SELECT COUNT(*) FROM docs WHERE run_id = 'content'`))
}

func TestIndexCmd_DedupeOffKeepsDuplicates(t *testing.T) {
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")

	_, _, err := execute(t, "index", "--input", in, "--db", db, "--run", "raw", "--dedupe", "0", "--no-tui")

	require.NoError(t, err)
	assert.EqualValues(t, 3, countRows(t, db, `SELECT COUNT(*) FROM docs WHERE run_id = 'raw'`))
}

func TestIndexCmd_EmptyRunFailsBeforeIO(t *testing.T) {
	// Given: a whitespace run label
	dir := isolate(t)
	db := filepath.Join(dir, "records.sqlite")

	// When: indexing
	_, _, err := execute(t, "index", "--input", filepath.Join(dir, "missing"), "--db", db, "--run", "  ")

	// Then: it fails with ERR_402 and the database is never created
	require.Error(t, err)
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeInvalidRun))
	assert.Equal(t, 1, ExitCode(err))
	assert.NoFileExists(t, db)
	assert.NoFileExists(t, store.LockPath(db))
}

func TestIndexCmd_RequiresInput(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "index")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "input")
}

func TestIndexCmd_MissingInputDirectory(t *testing.T) {
	dir := isolate(t)

	_, _, err := execute(t, "index", "--input", filepath.Join(dir, "missing"), "--db", filepath.Join(dir, "r.sqlite"))

	require.Error(t, err)
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeInputMissing))
}

func TestIndexCmd_InvalidDedupe(t *testing.T) {
	dir := isolate(t)
	in := writeDump(t, dir)

	_, _, err := execute(t, "index", "--input", in, "--dedupe", "yes")

	require.Error(t, err)
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeInvalidInput))
}

func TestIndexCmd_ChunkSizeValidation(t *testing.T) {
	dir := isolate(t)
	in := writeDump(t, dir)

	_, _, err := execute(t, "index", "--input", in, "--chunk-size", "0")

	require.Error(t, err)
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeInvalidInput))
}

func TestIndexCmd_SmallChunkSizeIsRaised(t *testing.T) {
	// Given: a chunk size below the floor
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")

	// When: indexing
	_, stderr, err := execute(t, "index", "--input", in, "--db", db, "--chunk-size", "50", "--no-tui")

	// Then: a warning is printed and the floor is recorded in metadata
	require.NoError(t, err)
	assert.Contains(t, stderr, "chunk size 50 is below 200; using 200")
	assert.EqualValues(t, 2, countRows(t, db,
		`SELECT COUNT(*) FROM docs WHERE json_extract(meta_json, '$.chunk_target_size') = 200`))
}

func TestIndexCmd_ResetAndIdempotentRerun(t *testing.T) {
	// Given: an indexed run
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")
	_, _, err := execute(t, "index", "--input", in, "--db", db, "--no-tui")
	require.NoError(t, err)
	chunks := countRows(t, db, `SELECT COUNT(*) FROM chunks`)

	// When: re-running plainly and then with --reset
	_, _, err = execute(t, "index", "--input", in, "--db", db, "--no-tui")
	require.NoError(t, err)
	rerun := countRows(t, db, `SELECT COUNT(*) FROM chunks`)
	_, _, err = execute(t, "index", "--input", in, "--db", db, "--no-tui", "--reset")
	require.NoError(t, err)

	// Then: nothing is duplicated
	assert.Equal(t, chunks, rerun)
	assert.Equal(t, chunks, countRows(t, db, `SELECT COUNT(*) FROM chunks`))
	assert.EqualValues(t, 2, countRows(t, db, `SELECT COUNT(*) FROM docs`))
}

func TestIndexCmd_ConfigFileAndEnvApply(t *testing.T) {
	// Given: a project config disabling dedupe and an env override of the db
	dir := isolate(t)
	in := writeDump(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".recordex.yaml"), []byte("ingest:\n  dedupe: false\n"), 0o644))
	db := filepath.Join(dir, "env.sqlite")
	t.Setenv("RECORDEX_DB", db)

	// When: indexing without --db or --dedupe
	_, _, err := execute(t, "index", "--input", in, "--no-tui")

	// Then: both settings took effect
	require.NoError(t, err)
	assert.EqualValues(t, 3, countRows(t, db, `SELECT COUNT(*) FROM docs`))
}

func TestStatsAndRunsCmd(t *testing.T) {
	// Given: an indexed run
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")
	_, _, err := execute(t, "index", "--input", in, "--db", db, "--no-tui")
	require.NoError(t, err)

	// When: reading stats as JSON and text
	jsonOut, _, err := execute(t, "stats", "--db", db, "--json")
	require.NoError(t, err)
	textOut, _, err := execute(t, "stats", "--db", db)
	require.NoError(t, err)
	runsOut, _, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)

	// Then: they agree with the database
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &info))
	assert.Equal(t, "content", info.Run)
	assert.EqualValues(t, 2, info.Documents)
	assert.EqualValues(t, countRows(t, db, `SELECT COUNT(*) FROM chunks`), info.Chunks)
	assert.Equal(t, 0, info.Marks)
	assert.Equal(t, "sqlite", info.Driver)
	assert.Contains(t, textOut, "Documents:")
	assert.Contains(t, textOut, "Marks:")
	assert.Equal(t, "content", strings.TrimSpace(runsOut))
}

func TestStatsCmd_EmptyRunWarns(t *testing.T) {
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")
	_, _, err := execute(t, "index", "--input", in, "--db", db, "--no-tui")
	require.NoError(t, err)

	out, _, err := execute(t, "stats", "--db", db, "--run", "other")

	require.NoError(t, err)
	assert.Contains(t, out, "no documents stored for this run")
}

// lockedBuffer is written by the command goroutine while the test polls it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestIndexCmd_WatchRebuildsOnChange(t *testing.T) {
	// Given: a watching index command over the standard dump
	dir := isolate(t)
	in := writeDump(t, dir)
	db := filepath.Join(dir, "records.sqlite")

	cmd, a := newRootCmd()
	var out lockedBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"index", "--input", in, "--db", db, "--no-tui", "--watch"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		err := cmd.ExecuteContext(ctx)
		_ = a.teardown()
		done <- err
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching "+in)
	}, 10*time.Second, 20*time.Millisecond)

	// When: a new dump file appears
	extra := dumpBlock("EFTA00000009.pdf", "A late addition about the hangar.")
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.txt"), []byte(extra), 0o644))

	// Then: the run is rebuilt with the new document
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Done: 2 files")
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("index --watch did not stop")
	}
	assert.EqualValues(t, 3, countRows(t, db, `SELECT COUNT(*) FROM docs WHERE run_id = 'content'`))
}
