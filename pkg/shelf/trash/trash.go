// Package trash implements a recoverable trash directory for soft deletes.
//
// On Linux and other XDG platforms files go to $XDG_DATA_HOME/Trash using
// the freedesktop layout: the payload under files/ and a .trashinfo record
// under info/ so desktop file managers can restore it too. On macOS the
// payload goes straight into ~/.Trash. Trashed names are prefixed with a
// timestamp so repeated deletes of the same name never collide.
package trash

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"

	"github.com/jamesainslie/shelf/pkg/shelf/fsops"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

const (
	filesDir   = "files"
	infoDir    = "info"
	infoSuffix = ".trashinfo"
	stampFmt   = "20060102T150405.000000000"
)

// Layout selects how the trash directory is organized.
type Layout int

const (
	// Freedesktop stores payloads under files/ with records under info/.
	Freedesktop Layout = iota
	// Flat stores payloads directly in the trash directory.
	Flat
)

// Trash moves paths into a trash directory and back.
type Trash struct {
	ops    *fsops.FS
	dir    string
	layout Layout
	clock  types.Clock
	logger *logging.Logger
}

// Option configures a Trash.
type Option func(*Trash)

// WithLayout overrides the platform default layout.
func WithLayout(l Layout) Option {
	return func(t *Trash) { t.layout = l }
}

// WithClock sets the clock used for name prefixes and deletion dates.
func WithClock(c types.Clock) Option {
	return func(t *Trash) { t.clock = c }
}

// DefaultDir returns the platform trash directory.
func DefaultDir() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(xdg.Home, ".Trash")
	}
	return filepath.Join(xdg.DataHome, "Trash")
}

func defaultLayout() Layout {
	if runtime.GOOS == "darwin" {
		return Flat
	}
	return Freedesktop
}

// New creates a trash rooted at dir. An empty dir uses DefaultDir.
func New(ops *fsops.FS, dir string, opts ...Option) *Trash {
	if dir == "" {
		dir = DefaultDir()
	}
	t := &Trash{
		ops:    ops,
		dir:    dir,
		layout: defaultLayout(),
		clock:  types.SystemClock{},
		logger: logging.Get("trash"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dir returns the trash root.
func (t *Trash) Dir() string { return t.dir }

func (t *Trash) payloadDir() string {
	if t.layout == Flat {
		return t.dir
	}
	return filepath.Join(t.dir, filesDir)
}

func (t *Trash) infoPath(trashPath string) string {
	return filepath.Join(t.dir, infoDir, filepath.Base(trashPath)+infoSuffix)
}

// Put moves path into the trash and returns where it now lives.
func (t *Trash) Put(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if _, err := t.ops.Stat(abs); err != nil {
		return "", fmt.Errorf("cannot trash %q: %w", abs, err)
	}

	now := t.clock.Now()
	name := now.UTC().Format(stampFmt) + "_" + filepath.Base(abs)
	target, err := t.ops.Disambiguate(filepath.Join(t.payloadDir(), name))
	if err != nil {
		return "", err
	}

	if t.layout == Freedesktop {
		if err := t.writeInfo(target, abs, now.Format("2006-01-02T15:04:05")); err != nil {
			return "", err
		}
	}

	if _, err := t.ops.Relocate(abs, target); err != nil {
		if t.layout == Freedesktop {
			_ = t.ops.Afero().Remove(t.infoPath(target))
		}
		return "", fmt.Errorf("moving %q to trash: %w", abs, err)
	}

	t.logger.Debug("trashed", "path", abs, "trash", target)
	return target, nil
}

func (t *Trash) writeInfo(trashPath, original, deletedAt string) error {
	info := t.infoPath(trashPath)
	if err := t.ops.EnsureParent(info); err != nil {
		return err
	}
	body := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: original}).EscapedPath(), deletedAt)
	if err := afero.WriteFile(t.ops.Afero(), info, []byte(body), 0o600); err != nil {
		return fmt.Errorf("writing trash info: %w", err)
	}
	return nil
}

// Exists reports whether trashPath is still in the trash.
func (t *Trash) Exists(trashPath string) (bool, error) {
	return t.ops.Exists(trashPath)
}

// Restore moves trashPath back to original. It fails with fs.ErrExist when
// something already occupies original.
func (t *Trash) Restore(trashPath, original string) error {
	if exists, err := t.ops.Exists(original); err != nil {
		return err
	} else if exists {
		return &os.PathError{Op: "restore", Path: original, Err: fs.ErrExist}
	}
	if _, err := t.ops.Relocate(trashPath, original); err != nil {
		return fmt.Errorf("restoring %q: %w", original, err)
	}
	if t.layout == Freedesktop {
		if err := t.ops.Afero().Remove(t.infoPath(trashPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("removing trash info", "path", trashPath, "error", err)
		}
	}
	t.logger.Debug("restored", "trash", trashPath, "path", original)
	return nil
}

// OriginalPath reads the original location recorded for trashPath.
func (t *Trash) OriginalPath(trashPath string) (string, error) {
	if t.layout != Freedesktop {
		return "", fmt.Errorf("%w: no trash info in flat layout", types.ErrNotFound)
	}
	data, err := afero.ReadFile(t.ops.Afero(), t.infoPath(trashPath))
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "Path="); ok {
			return url.PathUnescape(rest)
		}
	}
	return "", fmt.Errorf("%w: Path missing in trash info", types.ErrNotFound)
}
