package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero uses 10MiB.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept. Zero keeps them forever.
	MaxAge int

	// MaxBackups caps the number of rotated files. Zero keeps all of them.
	MaxBackups int

	// Daily rotates the file when the calendar day changes.
	Daily bool
}

// DefaultRotationConfig returns the rotation settings used when none are configured.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * humanize.MiByte,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// ParseMaxSize converts a human size such as "10MB" into bytes.
func ParseMaxSize(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing log max size %q: %w", s, err)
	}
	return int64(n), nil
}

// RotatingWriter is an io.WriteCloser that rotates its file by size and day.
// Writes hold an advisory flock so several shelf processes can share a file.
type RotatingWriter struct {
	path       string
	cfg        RotationConfig
	mu         sync.Mutex
	file       *os.File
	size       int64
	lastRotate time.Time
	now        func() time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg, now: time.Now}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	w.cleanup()
	return w, nil
}

// Write appends p, rotating first when needed. The file is flocked for the
// duration of the write.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.shouldRotate(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

// openFile opens the log file for appending and records its current size.
func (w *RotatingWriter) openFile() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	w.lastRotate = info.ModTime()
	return nil
}

// shouldRotate reports whether writing incoming bytes would pass MaxSize, or
// whether the day changed since the last rotation.
func (w *RotatingWriter) shouldRotate(incoming int64) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if w.cfg.Daily {
		now := w.now()
		if now.YearDay() != w.lastRotate.YearDay() || now.Year() != w.lastRotate.Year() {
			return true
		}
	}
	return false
}

// rotate renames the current file aside, reopens a fresh one and prunes old
// rotations.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.rotatedName()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.openFile(); err != nil {
		return err
	}
	w.lastRotate = w.now()
	w.cleanup()
	return nil
}

// rotatedName returns base.<timestamp>.ext, adding a counter when a file
// rotated within the same second already holds that name.
func (w *RotatingWriter) rotatedName() string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	stamp := w.now().Format("2006-01-02-150405")

	candidate := fmt.Sprintf("%s.%s%s", base, stamp, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%s-%d%s", base, stamp, i, ext)
	}
}

// cleanup enforces MaxBackups and MaxAge on rotated files. Errors are ignored.
func (w *RotatingWriter) cleanup() {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type rotatedFile struct {
		path    string
		modTime time.Time
	}
	var rotated []rotatedFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		rotated = append(rotated, rotatedFile{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(rotated, func(i, j int) bool {
		return rotated[i].modTime.After(rotated[j].modTime)
	})

	maxAge := time.Duration(w.cfg.MaxAge) * 24 * time.Hour
	now := w.now()
	for i, f := range rotated {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := w.cfg.MaxAge > 0 && now.Sub(f.modTime) > maxAge
		if tooMany || tooOld {
			_ = os.Remove(f.path)
		}
	}
}
