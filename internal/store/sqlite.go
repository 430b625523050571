package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // cgo driver, selected with store.driver: sqlite3
	_ "modernc.org/sqlite"          // pure Go driver (default)

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// sqliteHeader is the magic string at offset 0 of every SQLite database.
var sqliteHeader = []byte("SQLite format 3\x00")

// Options configures Open.
type Options struct {
	Path          string
	Driver        string
	BusyTimeoutMS int
	CacheMB       int
	// MustExist refuses to create a new database file.
	MustExist bool
}

// DB wraps the single-connection *sql.DB used by recordex.
type DB struct {
	db     *sql.DB
	path   string
	driver string
}

// Open opens (or creates) the database, applies pragmas and ensures the
// schema. The pool is limited to one connection so that the writer's
// transaction and any other statement never race for the file.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverModernc
	}
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}
	if opts.CacheMB <= 0 {
		opts.CacheMB = 64
	}

	if opts.Path != ":memory:" {
		if err := VerifyFile(opts.Path, opts.MustExist); err != nil {
			return nil, err
		}
		if dir := filepath.Dir(opts.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Pragmas go through statements; DSN parameters differ between drivers.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &DB{db: db, path: opts.Path, driver: opts.Driver}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// VerifyFile checks that an existing path is a regular file carrying the
// SQLite header. A missing file is fine unless mustExist is set.
func VerifyFile(path string, mustExist bool) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if mustExist {
			return rxerrors.New(rxerrors.ErrCodeInputMissing,
				fmt.Sprintf("database not found: %s", path), err).
				WithSuggestion("Run 'recordex index' first or pass --db")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}
	if !info.Mode().IsRegular() {
		return rxerrors.New(rxerrors.ErrCodeCorruptDB,
			fmt.Sprintf("database path is not a regular file: %s", path), nil)
	}
	if info.Size() == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, sqliteHeader) {
		return rxerrors.New(rxerrors.ErrCodeCorruptDB,
			fmt.Sprintf("not a SQLite database: %s", path), err).
			WithSuggestion("Check that --db points at the .sqlite file, not a .txt, -wal or -shm file")
	}
	return nil
}

// SelfCheck verifies that parameter binding round-trips label unchanged.
// Dedupe and identity rely on exact string comparison inside SQL.
func (s *DB) SelfCheck(ctx context.Context, label string) error {
	var got string
	if err := s.db.QueryRowContext(ctx, "SELECT ?", label).Scan(&got); err != nil {
		return rxerrors.New(rxerrors.ErrCodeSelfCheck, "parameter binding self-check failed", err)
	}
	if got != label {
		return rxerrors.New(rxerrors.ErrCodeSelfCheck,
			fmt.Sprintf("param binding broken: got %q expected %q", got, label), nil)
	}
	return nil
}

// SQL returns the underlying handle.
func (s *DB) SQL() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *DB) Path() string {
	return s.path
}

// Driver returns the database/sql driver name in use.
func (s *DB) Driver() string {
	return s.driver
}

// SizeBytes returns the size of the main database file.
func (s *DB) SizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

// isFTSQueryError reports whether err came from an invalid MATCH expression.
func isFTSQueryError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5:") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "no such column")
}
