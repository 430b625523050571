package preflight

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	assert.False(t, CheckResult{Status: StatusPass, Required: true}.IsCritical())
	assert.True(t, CheckResult{Status: StatusFail, Required: true}.IsCritical())
	assert.False(t, CheckResult{Status: StatusFail, Required: false}.IsCritical())
	assert.False(t, CheckResult{Status: StatusWarn, Required: true}.IsCritical())
}

func TestRunAll_HealthyEnvironment(t *testing.T) {
	// Given: an existing input dir and a database path in a fresh dir
	input := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "nested", "records.sqlite")
	checker := New(WithMinDiskSpace(1))

	// When: running all checks
	results := checker.RunAll(context.Background(), input, dbPath)

	// Then: every check passes
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusPass, r.Status, r.Name+": "+r.Message)
	}
	assert.False(t, checker.HasCriticalFailures(results))
	assert.NoError(t, checker.Err(results))
	assert.Equal(t, "ready", checker.SummaryStatus(results))
}

func TestRunAll_SkipsInputWhenEmpty(t *testing.T) {
	results := New(WithMinDiskSpace(1)).RunAll(context.Background(), "", filepath.Join(t.TempDir(), "x.sqlite"))

	require.Len(t, results, 2)
	assert.Equal(t, CheckNameDiskSpace, results[0].Name)
}

func TestCheckInputDir_Failures(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	checker := New()

	missing := checker.CheckInputDir(filepath.Join(dir, "missing"))
	assert.Equal(t, StatusFail, missing.Status)

	notDir := checker.CheckInputDir(file)
	assert.Equal(t, StatusFail, notDir.Status)
	assert.Contains(t, notDir.Message, "not a directory")
}

func TestCheckDiskSpace_BelowMinimumFails(t *testing.T) {
	// Given: an impossible minimum
	checker := New(WithMinDiskSpace(1 << 62))

	// When: checking a temp dir
	r := checker.CheckDiskSpace(t.TempDir())

	// Then: the check fails and maps to ERR_203
	assert.Equal(t, StatusFail, r.Status)
	err := checker.Err([]CheckResult{r})
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeDiskFull))
}

func TestErr_MapsInputFailure(t *testing.T) {
	checker := New()
	results := []CheckResult{
		{Name: CheckNameDiskSpace, Status: StatusPass, Required: true},
		{Name: CheckNameInputDir, Status: StatusFail, Required: true, Message: "gone", Details: "pass an existing directory with --input"},
	}

	err := checker.Err(results)

	require.Error(t, err)
	assert.True(t, rxerrors.HasCode(err, rxerrors.ErrCodeInputMissing))
	assert.Contains(t, rxerrors.FormatForCLI(err), "Hint: pass an existing directory")
}

func TestSummaryStatus_Warnings(t *testing.T) {
	checker := New()
	results := []CheckResult{{Name: "x", Status: StatusFail, Required: false}}

	assert.Equal(t, "ready_with_warnings", checker.SummaryStatus(results))
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))
	results := []CheckResult{
		{Name: CheckNameInputDir, Status: StatusPass, Message: "/data", Required: true},
		{Name: CheckNameDiskSpace, Status: StatusFail, Message: "1 MB free", Details: "free space", Required: true},
	}

	checker.PrintResults(results)

	out := buf.String()
	assert.Contains(t, out, "[PASS] input_dir: /data")
	assert.Contains(t, out, "[FAIL] disk_space: 1 MB free")
	assert.Contains(t, out, "      free space")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
}

func TestExistingAncestor(t *testing.T) {
	root := t.TempDir()

	assert.Equal(t, root, existingAncestor(filepath.Join(root, "a", "b", "c")))
	assert.Equal(t, root, existingAncestor(root))
}
