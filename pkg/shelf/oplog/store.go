package oplog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Store persists operation records and path references.
type Store interface {
	// Insert assigns rec.ID and appends it.
	Insert(ctx context.Context, rec *Record) error

	// Get returns the record with id or an error wrapping types.ErrNotFound.
	Get(ctx context.Context, id int64) (*Record, error)

	// List returns up to limit records, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Record, error)

	// ListBatch returns the records of one batch, newest first.
	ListBatch(ctx context.Context, batchID string) ([]Record, error)

	// LatestBatch returns the batch id of the newest record that has one.
	LatestBatch(ctx context.Context) (string, error)

	// MarkUndone stamps the record as undone at t. It fails with
	// types.ErrAlreadyUndone, without writing, when it is already stamped.
	MarkUndone(ctx context.Context, id int64, t time.Time) error

	// TrackPath stores or replaces a path reference.
	TrackPath(ctx context.Context, ref PathRef) error

	// LookupPath returns the reference stored for path.
	LookupPath(ctx context.Context, path string) (*PathRef, error)

	// UpdatePathReferences rewrites references at oldPath, and below it
	// for directories, to live under newPath.
	UpdatePathReferences(ctx context.Context, oldPath, newPath string) error

	// Prune deletes the records created before t and returns how many it
	// removed. Path references are kept.
	Prune(ctx context.Context, before time.Time) (int, error)

	Close() error
}

// Backend names a Store implementation.
type Backend string

// Supported backends.
const (
	BackendBadger Backend = "badger"
	BackendSQLite Backend = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend Backend

	// Path is the badger directory or SQLite file. Empty uses DefaultPath.
	Path string

	// InMemory keeps everything in memory; Path is ignored.
	InMemory bool
}

// DefaultPath returns the default location for backend under
// $XDG_DATA_HOME/shelf.
func DefaultPath(backend Backend) string {
	if backend == BackendSQLite {
		return filepath.Join(xdg.DataHome, "shelf", "oplog.db")
	}
	return filepath.Join(xdg.DataHome, "shelf", "oplog")
}

// Open opens the configured store.
func Open(opts Options) (Store, error) {
	backend := Backend(strings.ToLower(string(opts.Backend)))
	if backend == "" {
		backend = BackendBadger
	}
	path := opts.Path
	if path == "" && !opts.InMemory {
		path = DefaultPath(backend)
	}

	switch backend {
	case BackendBadger:
		return OpenBadger(path, opts.InMemory)
	case BackendSQLite:
		if opts.InMemory {
			path = ":memory:"
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown oplog backend %q", opts.Backend)
	}
}

// rebase returns p moved from under oldRoot to under newRoot, and whether p
// was at or below oldRoot.
func rebase(p, oldRoot, newRoot string) (string, bool) {
	if p == oldRoot {
		return newRoot, true
	}
	prefix := strings.TrimSuffix(oldRoot, string(filepath.Separator)) + string(filepath.Separator)
	if strings.HasPrefix(p, prefix) {
		return filepath.Join(newRoot, strings.TrimPrefix(p, prefix)), true
	}
	return "", false
}
