package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// GzipExt is the suffix added to compressed archives.
const GzipExt = ".gz"

// Compress writes a gzip copy of the regular file src to dst. dst must not
// exist. The original is left in place.
func (f *FS) Compress(src, dst string) (err error) {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("compress %s: is a directory", src)
	}

	if err := f.EnsureParent(dst); err != nil {
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

	zw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return err
	}
	zw.Name = filepath.Base(src)
	zw.ModTime = info.ModTime()

	if _, err = io.Copy(zw, in); err != nil {
		return fmt.Errorf("compressing %s: %w", src, err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", dst, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	return out.Close()
}

// Decompress expands the gzip file src into dst. dst must not exist.
func (f *FS) Decompress(src, dst string) (err error) {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	defer func() { _ = zr.Close() }()

	if err := f.EnsureParent(dst); err != nil {
		return err
	}
	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = f.fs.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, zr); err != nil {
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	if !zr.ModTime.IsZero() {
		_ = f.fs.Chtimes(dst, zr.ModTime, zr.ModTime)
	}
	return nil
}
