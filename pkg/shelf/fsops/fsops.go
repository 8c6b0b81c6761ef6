// Package fsops holds the filesystem primitives used by the executor and
// the undo engine. Everything runs on an afero.Fs so tests can use an
// in-memory filesystem.
package fsops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// ErrVerify is returned when a copied file does not hash to the same value
// as its source.
var ErrVerify = errors.New("copy verification failed")

const dirPerm = 0o755

// FS wraps an afero filesystem with shelf's relocation primitives.
type FS struct {
	fs     afero.Fs
	mkdirs singleflight.Group
	logger *logging.Logger
}

// New wraps fsys. A nil fsys uses the OS filesystem.
func New(fsys afero.Fs) *FS {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FS{fs: fsys, logger: logging.Get("fsops")}
}

// Afero returns the underlying filesystem.
func (f *FS) Afero() afero.Fs { return f.fs }

// Stat returns file info for path.
func (f *FS) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) (bool, error) {
	_, err := f.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// EnsureParent creates the parent directory of path. Concurrent callers
// for the same directory share one MkdirAll.
func (f *FS) EnsureParent(path string) error {
	dir := filepath.Dir(path)
	_, err, _ := f.mkdirs.Do(dir, func() (any, error) {
		return nil, f.fs.MkdirAll(dir, dirPerm)
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// Relocate moves src to dst. It tries a rename first; when src and dst are
// on different devices it copies, verifies the copy, and then removes src.
// If a regular file cannot be removed the copy is deleted again so only one
// copy remains. A directory may be partly removed when removal fails, so its
// copy at dst is always kept. The boolean reports whether the copy fallback
// was used.
func (f *FS) Relocate(src, dst string) (bool, error) {
	if err := f.EnsureParent(dst); err != nil {
		return false, err
	}

	err := f.fs.Rename(src, dst)
	if err == nil {
		return false, nil
	}
	if !IsCrossDevice(err) {
		return false, err
	}

	f.logger.Debug("rename crossed devices, copying", "src", src, "dst", dst)
	info, err := f.fs.Stat(src)
	if err != nil {
		return true, err
	}
	if err := f.Copy(src, dst); err != nil {
		return true, err
	}
	if err := f.fs.RemoveAll(src); err != nil {
		if info.IsDir() {
			f.logger.Warn("source directory partly removed, keeping copy", "src", src, "dst", dst, "error", err)
			return true, fmt.Errorf("removing source (copy kept at %s): %w", dst, err)
		}
		if rbErr := f.fs.RemoveAll(dst); rbErr != nil {
			f.logger.Error("rollback after failed source removal", "dst", dst, "error", rbErr)
			return true, errors.Join(fmt.Errorf("removing source: %w", err), rbErr)
		}
		return true, fmt.Errorf("removing source: %w", err)
	}
	return true, nil
}

// IsCrossDevice reports whether err came from renaming across devices.
func IsCrossDevice(err error) bool {
	return errors.Is(err, types.ErrCrossDevice) || isEXDEV(err)
}

// Copy copies a file or directory tree from src to dst. dst must not exist.
// On failure anything written under dst is removed.
func (f *FS) Copy(src, dst string) error {
	info, err := f.fs.Stat(src)
	if err != nil {
		return err
	}
	if err := f.EnsureParent(dst); err != nil {
		return err
	}

	if !info.IsDir() {
		return f.CopyFile(src, dst)
	}

	if exists, err := f.Exists(dst); err != nil {
		return err
	} else if exists {
		return &os.PathError{Op: "copy", Path: dst, Err: fs.ErrExist}
	}

	err = afero.Walk(f.fs, src, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			if err := f.fs.MkdirAll(target, fi.Mode().Perm()|0o700); err != nil {
				return err
			}
			return nil
		}
		return f.CopyFile(path, target)
	})
	if err != nil {
		_ = f.fs.RemoveAll(dst)
		return fmt.Errorf("copying tree %s: %w", src, err)
	}
	return nil
}

// CopyFile copies a regular file, syncs it, preserves mode and
// modification time, and verifies the result by checksum.
func (f *FS) CopyFile(src, dst string) (err error) {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = f.fs.Remove(dst)
		}
	}()

	h := xxhash.New()
	if _, err = io.Copy(io.MultiWriter(out, h), in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	if err = f.fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err = f.fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}

	got, err := f.Checksum(dst)
	if err != nil {
		return err
	}
	if got != h.Sum64() {
		err = fmt.Errorf("%w: %s", ErrVerify, dst)
		return err
	}
	return nil
}

// Checksum returns the xxhash of a file's contents.
func (f *FS) Checksum(path string) (uint64, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// Remove deletes path and anything below it.
func (f *FS) Remove(path string) error {
	if _, err := f.fs.Stat(path); err != nil {
		return err
	}
	return f.fs.RemoveAll(path)
}

// Disambiguate returns path if nothing exists there, otherwise the first
// free "name (n).ext" sibling.
func (f *FS) Disambiguate(path string) (string, error) {
	exists, err := f.Exists(path)
	if err != nil || !exists {
		return path, err
	}

	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		exists, err := f.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
