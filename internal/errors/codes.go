// Package errors provides structured error handling for recordex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (input files, database file)
//   - 4XX: Validation errors
//   - 5XX: Storage and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one unit of work; the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileRead     = "ERR_201_FILE_READ"
	ErrCodeInputMissing = "ERR_202_INPUT_MISSING"
	ErrCodeDiskFull     = "ERR_203_DISK_FULL"
	ErrCodeDBLocked     = "ERR_204_DB_LOCKED"
	ErrCodeCorruptDB    = "ERR_205_CORRUPT_DB"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidRun   = "ERR_402_INVALID_RUN"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"

	// Storage / internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeSelfCheck   = "ERR_502_SELF_CHECK"
	ErrCodeStoreWrite  = "ERR_503_STORE_WRITE"
	ErrCodeMaintenance = "ERR_504_MAINTENANCE"
	ErrCodeSearch      = "ERR_505_SEARCH_FAILED"
	ErrCodeInterrupted = "ERR_506_INTERRUPTED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSelfCheck, ErrCodeInvalidRun, ErrCodeCorruptDB, ErrCodeDiskFull,
		ErrCodeStoreWrite, ErrCodeDBLocked, ErrCodeInputMissing:
		return SeverityFatal
	case ErrCodeMaintenance:
		return SeverityWarning
	}
	return SeverityError
}
