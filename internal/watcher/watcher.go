// Package watcher reports changes to the record files under an input
// directory so a run can be re-ingested.
//
// Events are filtered with the scanner's rules, debounced, and delivered as
// one batch per quiet period. Changes to the ignore file itself also count.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/recordex/internal/scanner"
)

// DefaultDebounce is the quiet period that ends a batch.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Scan holds the discovery rules; Scan.Root is the watched directory.
	Scan scanner.Options
	// Debounce is the quiet period after the last event of a batch.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Batch lists the relative paths that changed during one debounce window.
type Batch struct {
	Paths []string
}

// Watcher watches one input directory recursively.
type Watcher struct {
	root   string
	opts   Options
	filter *scanner.Filter
	fsw    *fsnotify.Watcher
	logger *slog.Logger
}

// New starts watching opts.Scan.Root and every directory below it that the
// scanner would descend into.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root, err := filepath.Abs(opts.Scan.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input directory: %w", err)
	}
	opts.Scan.Root = root

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", root)
	}

	filter, err := scanner.NewFilter(opts.Scan)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{root: root, opts: opts, filter: filter, fsw: fsw, logger: opts.Logger}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers batches to fn until ctx is cancelled or fn fails. fn runs on
// the watcher goroutine; events arriving meanwhile are queued for the next
// batch. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, Batch) error) error {
	pending := map[string]bool{}
	var fire <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			rel, relevant := w.handle(ev)
			if !relevant {
				continue
			}
			pending[rel] = true
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			batch := Batch{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				batch.Paths = append(batch.Paths, p)
			}
			sort.Strings(batch.Paths)
			clear(pending)

			if err := w.refreshFilter(batch); err != nil {
				w.logger.Warn("ignore_file_reload_failed", slog.String("error", err.Error()))
			}
			w.logger.Debug("watch_batch", slog.Int("paths", len(batch.Paths)))
			if err := fn(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// handle filters one event and starts watching new directories. It returns
// the slash-separated relative path and whether it counts as a change.
func (w *Watcher) handle(ev fsnotify.Event) (string, bool) {
	if ev.Op&fsnotify.Chmod != 0 && ev.Op&^fsnotify.Chmod == 0 {
		return "", false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if rel == scanner.IgnoreFileName && !w.opts.Scan.NoIgnoreFile {
		return rel, true
	}

	if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create == 0 || w.filter.SkipDir(rel) {
			return "", false
		}
		if err := w.addRecursive(ev.Name); err != nil {
			w.logger.Warn("watch_add_failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		// Files copied in together with the directory raise no events of their own.
		return rel, true
	}

	if !w.filter.Accept(rel) || w.insideSkippedDir(rel) {
		return "", false
	}
	return rel, true
}

// insideSkippedDir reports whether a parent directory of rel is excluded.
func (w *Watcher) insideSkippedDir(rel string) bool {
	for dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." && dir != "/"; dir = filepath.ToSlash(filepath.Dir(dir)) {
		if w.filter.SkipDir(dir) {
			return true
		}
	}
	return false
}

// refreshFilter reloads the ignore rules when the batch touched them.
func (w *Watcher) refreshFilter(b Batch) error {
	for _, p := range b.Paths {
		if p == scanner.IgnoreFileName {
			filter, err := scanner.NewFilter(w.opts.Scan)
			if err != nil {
				return err
			}
			w.filter = filter
			return nil
		}
	}
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if rel != "." && w.filter.SkipDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
