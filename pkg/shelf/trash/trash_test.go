package trash_test

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/fsops"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var deletedAt = time.Date(2024, time.March, 2, 8, 15, 0, 0, time.UTC)

func setup(t *testing.T, layout trash.Layout) (afero.Fs, *trash.Trash) {
	t.Helper()
	mem := afero.NewMemMapFs()
	tr := trash.New(fsops.New(mem), "/trash", trash.WithLayout(layout), trash.WithClock(types.FixedClock(deletedAt)))
	return mem, tr
}

func TestPutFreedesktop(t *testing.T) {
	t.Parallel()

	mem, tr := setup(t, trash.Freedesktop)
	require.NoError(t, afero.WriteFile(mem, "/home/u/setup 1.dmg", []byte("x"), 0o644))

	got, err := tr.Put("/home/u/setup 1.dmg")
	require.NoError(t, err)

	assert.Equal(t, filepath.FromSlash("/trash/files"), filepath.Dir(got))
	assert.True(t, strings.HasSuffix(got, "_setup 1.dmg"))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "20240302T081500"))

	exists, err := tr.Exists(got)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = mem.Stat("/home/u/setup 1.dmg")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	info, err := afero.ReadFile(mem, filepath.Join("/trash/info", filepath.Base(got)+".trashinfo"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "Path=/home/u/setup%201.dmg")
	assert.Contains(t, string(info), "DeletionDate=2024-03-02T08:15:00")

	orig, err := tr.OriginalPath(got)
	require.NoError(t, err)
	assert.Equal(t, "/home/u/setup 1.dmg", orig)
}

func TestPutSameNameTwice(t *testing.T) {
	t.Parallel()

	mem, tr := setup(t, trash.Freedesktop)
	require.NoError(t, afero.WriteFile(mem, "/a/x.txt", []byte("1"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/b/x.txt", []byte("2"), 0o644))

	first, err := tr.Put("/a/x.txt")
	require.NoError(t, err)
	second, err := tr.Put("/b/x.txt")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPutFlat(t *testing.T) {
	t.Parallel()

	mem, tr := setup(t, trash.Flat)
	require.NoError(t, afero.WriteFile(mem, "/a/x.txt", []byte("1"), 0o644))

	got, err := tr.Put("/a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/trash"), filepath.Dir(got))

	_, err = tr.OriginalPath(got)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPutMissing(t *testing.T) {
	t.Parallel()

	_, tr := setup(t, trash.Freedesktop)
	_, err := tr.Put("/does/not/exist")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	mem, tr := setup(t, trash.Freedesktop)
	require.NoError(t, afero.WriteFile(mem, "/docs/a.pdf", []byte("pdf"), 0o644))

	got, err := tr.Put("/docs/a.pdf")
	require.NoError(t, err)

	require.NoError(t, tr.Restore(got, "/docs/a.pdf"))
	data, err := afero.ReadFile(mem, "/docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))

	exists, err := tr.Exists(got)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = mem.Stat(filepath.Join("/trash/info", filepath.Base(got)+".trashinfo"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRestoreRefusesOccupiedPath(t *testing.T) {
	t.Parallel()

	mem, tr := setup(t, trash.Freedesktop)
	require.NoError(t, afero.WriteFile(mem, "/docs/a.pdf", []byte("old"), 0o644))
	got, err := tr.Put("/docs/a.pdf")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(mem, "/docs/a.pdf", []byte("new"), 0o644))

	assert.ErrorIs(t, tr.Restore(got, "/docs/a.pdf"), fs.ErrExist)
}

func TestDefaultDir(t *testing.T) {
	t.Parallel()
	assert.Contains(t, trash.DefaultDir(), "Trash")
}
