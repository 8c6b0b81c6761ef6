package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

func TestPruneCutoff(t *testing.T) {
	now := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age  string
		want time.Time
	}{
		{"90 days", now.AddDate(0, 0, -90)},
		{"2 weeks", now.AddDate(0, 0, -14)},
		{" 1 month ", now.AddDate(0, 0, -30)},
		{"1 YEAR", now.AddDate(0, 0, -365)},
	}

	for _, tt := range tests {
		t.Run(tt.age, func(t *testing.T) {
			got, err := pruneCutoff(tt.age, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestPruneCutoffRejectsBadAge(t *testing.T) {
	for _, age := range []string{"", "soon", "-3 days", "3 fortnights"} {
		_, err := pruneCutoff(age, time.Now())
		assert.ErrorIs(t, err, types.ErrValidation, age)
	}
}

func TestDeleteNotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	report := filepath.Join(env.inbox, "report.pdf")
	shot := filepath.Join(env.inbox, "Screenshot 2024.png")

	trashed, err := env.app.exec.Delete(ctx, report, true)
	require.NoError(t, err)
	assert.Empty(t, deleteNotes(env.app.trash, trashed))

	if runtime.GOOS != "darwin" {
		info := filepath.Join(env.app.trash.Dir(), "info", filepath.Base(trashed.Destination)+".trashinfo")
		require.NoError(t, os.WriteFile(info, []byte("[Trash Info]\nPath=/somewhere/else.pdf\n"), 0o600))
		notes := deleteNotes(env.app.trash, trashed)
		require.Len(t, notes, 1)
		assert.Contains(t, notes[0], "/somewhere/else.pdf")
	}

	require.NoError(t, os.Remove(trashed.Destination))
	notes := deleteNotes(env.app.trash, trashed)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "no longer in the trash")

	gone, err := env.app.exec.Delete(ctx, shot, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"deleted permanently; cannot be undone"}, deleteNotes(env.app.trash, gone))
}
