package oplog_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var base = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

// backends opens every Store implementation for the shared contract tests.
func backends(t *testing.T) map[string]oplog.Store {
	t.Helper()

	badgerStore, err := oplog.Open(oplog.Options{Backend: oplog.BackendBadger, InMemory: true})
	require.NoError(t, err)
	sqliteStore, err := oplog.Open(oplog.Options{Backend: oplog.BackendSQLite, InMemory: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, badgerStore.Close())
		assert.NoError(t, sqliteStore.Close())
	})
	return map[string]oplog.Store{"badger": badgerStore, "sqlite": sqliteStore}
}

func insert(t *testing.T, s oplog.Store, rec oplog.Record) oplog.Record {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), &rec))
	return rec
}

func TestInsertAssignsIncreasingIDs(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/a", Destination: "/b", CreatedAt: base})
			second := insert(t, s, oplog.Record{Type: oplog.OpCopy, Source: "/c", Destination: "/d", CreatedAt: base})
			assert.Positive(t, first.ID)
			assert.Greater(t, second.ID, first.ID)
		})
	}
}

func TestInsertRejectsUnknownType(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Insert(context.Background(), &oplog.Record{Type: "teleport", Source: "/a", CreatedAt: base})
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestGetRoundTripsNullableFields(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			full := insert(t, s, oplog.Record{
				Type:        oplog.OpArchive,
				Source:      "/in/a.txt",
				Destination: "/arch/a.txt.gz",
				RuleName:    "Stale Archives",
				Confidence:  ptr(0.75),
				CreatedAt:   base,
				BatchID:     "batch-1",
				Compressed:  true,
			})
			bare := insert(t, s, oplog.Record{Type: oplog.OpDelete, Source: "/in/gone", CreatedAt: base})

			got, err := s.Get(ctx, full.ID)
			require.NoError(t, err)
			assert.Equal(t, oplog.OpArchive, got.Type)
			assert.Equal(t, "/arch/a.txt.gz", got.Destination)
			assert.Equal(t, "Stale Archives", got.RuleName)
			require.NotNil(t, got.Confidence)
			assert.InDelta(t, 0.75, *got.Confidence, 1e-9)
			assert.True(t, got.CreatedAt.Equal(base))
			assert.Equal(t, "batch-1", got.BatchID)
			assert.True(t, got.Compressed)
			assert.False(t, got.Undone())

			got, err = s.Get(ctx, bare.ID)
			require.NoError(t, err)
			assert.Empty(t, got.Destination)
			assert.Empty(t, got.RuleName)
			assert.Nil(t, got.Confidence)
			assert.Nil(t, got.UndoneAt)
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), 9999)
			assert.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var ids []int64
			for i := 0; i < 5; i++ {
				rec := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/s", Destination: "/d", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
				ids = append(ids, rec.ID)
			}

			all, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 5)
			assert.Equal(t, ids[4], all[0].ID)
			assert.Equal(t, ids[0], all[4].ID)

			limited, err := s.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, ids[4], limited[0].ID)
			assert.Equal(t, ids[3], limited[1].ID)
		})
	}
}

func TestListEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			records, err := s.List(context.Background(), 10)
			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestBatches(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LatestBatch(ctx)
			require.ErrorIs(t, err, types.ErrNotFound)

			insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/1", Destination: "/x1", CreatedAt: base, BatchID: "old"})
			a := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/2", Destination: "/x2", CreatedAt: base, BatchID: "new"})
			b := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/3", Destination: "/x3", CreatedAt: base, BatchID: "new"})
			insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/4", Destination: "/x4", CreatedAt: base})

			latest, err := s.LatestBatch(ctx)
			require.NoError(t, err)
			assert.Equal(t, "new", latest)

			recs, err := s.ListBatch(ctx, "new")
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, b.ID, recs[0].ID)
			assert.Equal(t, a.ID, recs[1].ID)
		})
	}
}

func TestMarkUndoneIsOneShot(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/a", Destination: "/b", CreatedAt: base})
			first := base.Add(time.Hour)

			require.NoError(t, s.MarkUndone(ctx, rec.ID, first))
			err := s.MarkUndone(ctx, rec.ID, base.Add(2*time.Hour))
			require.ErrorIs(t, err, types.ErrAlreadyUndone)

			got, err := s.Get(ctx, rec.ID)
			require.NoError(t, err)
			require.NotNil(t, got.UndoneAt)
			assert.True(t, got.UndoneAt.Equal(first))

			assert.ErrorIs(t, s.MarkUndone(ctx, 424242, first), types.ErrNotFound)
		})
	}
}

func TestMarkUndoneConcurrent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/a", Destination: "/b", CreatedAt: base})

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.MarkUndone(ctx, rec.ID, base); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, successes)
		})
	}
}

func TestPathReferences(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"/dl/album", "/dl/album/01.mp3", "/dl/albums/other.mp3", "/dl/solo.mp3"} {
				require.NoError(t, s.TrackPath(ctx, oplog.PathRef{
					Path: p, Size: 10, ModTime: base, Category: types.CategoryAudio, Rule: "Music", UpdatedAt: base,
				}))
			}

			require.NoError(t, s.UpdatePathReferences(ctx, "/dl/album", "/music/album"))

			ref, err := s.LookupPath(ctx, "/music/album/01.mp3")
			require.NoError(t, err)
			assert.Equal(t, int64(10), ref.Size)
			assert.Equal(t, types.CategoryAudio, ref.Category)
			assert.Equal(t, "Music", ref.Rule)
			assert.True(t, ref.ModTime.Equal(base))

			_, err = s.LookupPath(ctx, "/music/album")
			require.NoError(t, err)
			_, err = s.LookupPath(ctx, "/dl/album/01.mp3")
			assert.ErrorIs(t, err, types.ErrNotFound)

			// siblings sharing a name prefix stay put
			_, err = s.LookupPath(ctx, "/dl/albums/other.mp3")
			require.NoError(t, err)

			require.NoError(t, s.UpdatePathReferences(ctx, "/dl/solo.mp3", "/music/solo.mp3"))
			_, err = s.LookupPath(ctx, "/music/solo.mp3")
			require.NoError(t, err)

			require.NoError(t, s.UpdatePathReferences(ctx, "/untracked", "/elsewhere"))

			// non-ASCII directory names
			require.NoError(t, s.TrackPath(ctx, oplog.PathRef{Path: "/home/u/Fotos/Überblick/a.jpg", UpdatedAt: base}))
			require.NoError(t, s.TrackPath(ctx, oplog.PathRef{Path: "/home/u/Fotos/Überblicke/b.jpg", UpdatedAt: base}))
			require.NoError(t, s.UpdatePathReferences(ctx, "/home/u/Fotos/Überblick", "/home/u/Pictures/Überblick"))
			_, err = s.LookupPath(ctx, "/home/u/Pictures/Überblick/a.jpg")
			require.NoError(t, err)
			_, err = s.LookupPath(ctx, "/home/u/Fotos/Überblick/a.jpg")
			assert.ErrorIs(t, err, types.ErrNotFound)
			_, err = s.LookupPath(ctx, "/home/u/Fotos/Überblicke/b.jpg")
			require.NoError(t, err)
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "oplog")
	ctx := context.Background()

	s, err := oplog.Open(oplog.Options{Backend: oplog.BackendBadger, Path: dir})
	require.NoError(t, err)
	first := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/a", Destination: "/b", CreatedAt: base})
	require.NoError(t, s.Close())

	s, err = oplog.Open(oplog.Options{Backend: oplog.BackendBadger, Path: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "/a", got.Source)

	second := insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/c", Destination: "/d", CreatedAt: base})
	assert.Greater(t, second.ID, first.ID)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "oplog.db")
	ctx := context.Background()

	s, err := oplog.Open(oplog.Options{Backend: oplog.BackendSQLite, Path: path})
	require.NoError(t, err)
	rec := insert(t, s, oplog.Record{Type: oplog.OpRename, Source: "/a", Destination: "/b", CreatedAt: base})
	require.NoError(t, s.Close())

	s, err = oplog.Open(oplog.Options{Backend: oplog.BackendSQLite, Path: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, oplog.OpRename, got.Type)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := oplog.Open(oplog.Options{Backend: "etcd", InMemory: true})
	assert.Error(t, err)
}

func TestParseOpType(t *testing.T) {
	for _, s := range []string{"move", "copy", "delete", "archive", "rename"} {
		got, err := oplog.ParseOpType(s)
		require.NoError(t, err)
		assert.Equal(t, oplog.OpType(s), got)
	}
	_, err := oplog.ParseOpType("zip")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "oplog.db", filepath.Base(oplog.DefaultPath(oplog.BackendSQLite)))
	assert.Equal(t, "oplog", filepath.Base(oplog.DefaultPath(oplog.BackendBadger)))
}

func TestPrune(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/old", Destination: "/a", CreatedAt: base})
			insert(t, s, oplog.Record{Type: oplog.OpMove, Source: "/older", Destination: "/b", CreatedAt: base.Add(-time.Hour)})
			kept := insert(t, s, oplog.Record{Type: oplog.OpCopy, Source: "/new", Destination: "/c", CreatedAt: base.Add(48 * time.Hour)})
			require.NoError(t, s.TrackPath(ctx, oplog.PathRef{Path: "/a", Rule: "r"}))

			n, err := s.Prune(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			recs, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, kept.ID, recs[0].ID)

			_, err = s.LookupPath(ctx, "/a")
			assert.NoError(t, err)

			n, err = s.Prune(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}
