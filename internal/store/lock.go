package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	rxerrors "github.com/Aman-CERP/recordex/internal/errors"
)

// WriterLock is the cross-process lock held by an ingest run for the
// lifetime of its writer. The lock file sits next to the database.
type WriterLock struct {
	path  string
	flock *flock.Flock
}

// LockPath returns the lock file used for dbPath.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireWriterLock takes the lock without blocking. When another process
// holds it the error carries ERR_204.
func AcquireWriterLock(dbPath string) (*WriterLock, error) {
	path := LockPath(dbPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !acquired {
		return nil, rxerrors.New(rxerrors.ErrCodeDBLocked,
			fmt.Sprintf("another ingest is writing to %s", dbPath), nil).
			WithDetail("lock", path).
			WithSuggestion("Wait for the other run to finish")
	}
	return &WriterLock{path: path, flock: fl}, nil
}

// Path returns the lock file path.
func (l *WriterLock) Path() string {
	return l.path
}

// Release unlocks. The lock file itself is left in place.
func (l *WriterLock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
