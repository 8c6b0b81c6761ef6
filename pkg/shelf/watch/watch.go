// Package watch reports files that appear in watched directories once they
// have stopped changing, so partially downloaded files are not organized.
package watch

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/scanner"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// DefaultSettle is how long a file must be quiet before it is reported.
const DefaultSettle = 2 * time.Second

// Handler receives each settled file.
type Handler func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	// Recursive also watches subdirectories, including ones created later.
	Recursive bool

	// Settle defaults to DefaultSettle.
	Settle time.Duration

	// Exclude and IncludeHidden filter files like the scanner does.
	Exclude       []string
	IncludeHidden bool
}

// Watcher watches directories for new or modified regular files.
type Watcher struct {
	opts   Options
	fsw    *fsnotify.Watcher
	clock  types.Clock
	logger *logging.Logger

	mu      sync.Mutex
	paths   map[string]bool
	pending map[string]time.Time
	closed  bool
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Watcher{
		opts:    opts,
		fsw:     fsw,
		clock:   types.SystemClock{},
		logger:  logging.Get("watch"),
		paths:   make(map[string]bool),
		pending: make(map[string]time.Time),
	}, nil
}

// Watch starts watching the directory root.
func (w *Watcher) Watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return types.NewOpError("watch", root, types.ErrValidation, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.NewOpError("watch", abs, nil, err)
	}
	if !info.IsDir() {
		return types.NewOpError("watch", abs, types.ErrValidation, errors.New("not a directory"))
	}

	if !w.opts.Recursive {
		return w.addWatch(abs)
	}
	return w.addTree(abs)
}

// Watched returns the watched directories, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if path != root && scanner.Skipped(path, w.opts.Exclude, w.opts.IncludeHidden) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("failed to add watch", "path", path, "error", err)
		return types.NewOpError("watch", path, nil, err)
	}
	w.paths[path] = true
	return nil
}

// Run delivers settled files to handler until ctx is done. Files are
// handled one at a time, oldest event first.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(max(w.opts.Settle/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			for _, path := range w.settled() {
				handler(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.opts.Recursive && event.Op&fsnotify.Create != 0 &&
				!scanner.Skipped(path, w.opts.Exclude, w.opts.IncludeHidden) {
				_ = w.addTree(path)
			}
			return
		}
		if !info.Mode().IsRegular() || scanner.Skipped(path, w.opts.Exclude, w.opts.IncludeHidden) {
			return
		}
		w.mu.Lock()
		w.pending[path] = w.clock.Now()
		w.mu.Unlock()

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(path)
	}
}

// forget drops path from the pending set and stops watching it and the
// directories below it.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.pending, path)
	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.fsw.Remove(p)
			delete(w.paths, p)
		}
	}
}

// settled removes and returns the pending files that have been quiet for
// the settle period and still exist.
func (w *Watcher) settled() []string {
	cutoff := w.clock.Now().Add(-w.opts.Settle)

	w.mu.Lock()
	type item struct {
		path string
		at   time.Time
	}
	var ready []item
	for p, at := range w.pending {
		if !at.After(cutoff) {
			ready = append(ready, item{p, at})
			delete(w.pending, p)
		}
	}
	w.mu.Unlock()

	slices.SortFunc(ready, func(a, b item) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})

	out := make([]string, 0, len(ready))
	for _, it := range ready {
		if info, err := os.Stat(it.path); err == nil && info.Mode().IsRegular() {
			out = append(out, it.path)
		}
	}
	return out
}

// Close stops watching. Run returns once the event channels close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	w.pending = make(map[string]time.Time)
	return w.fsw.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
