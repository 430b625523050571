package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Queryer is satisfied by *sql.DB, *sql.Tx and *Writer.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Capabilities describes the SQLite engine behind a connection.
type Capabilities struct {
	Version   string
	Returning bool
}

// returningMinVersion is the first release with INSERT ... RETURNING.
var returningMinVersion = [3]int{3, 35, 0}

// DetectCapabilities asks the engine for its version. It runs once per
// process before any document is processed.
func DetectCapabilities(ctx context.Context, q Queryer) (Capabilities, error) {
	var version string
	if err := q.QueryRowContext(ctx, "select sqlite_version()").Scan(&version); err != nil {
		return Capabilities{}, fmt.Errorf("failed to read sqlite version: %w", err)
	}
	return Capabilities{Version: version, Returning: SupportsReturning(version)}, nil
}

// SupportsReturning reports whether version is at least 3.35.0. Versions
// that do not parse as three integers are treated as unsupported.
func SupportsReturning(version string) bool {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) != 3 {
		return false
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return false
		}
		v[i] = n
	}
	for i := range v {
		if v[i] != returningMinVersion[i] {
			return v[i] > returningMinVersion[i]
		}
	}
	return true
}
