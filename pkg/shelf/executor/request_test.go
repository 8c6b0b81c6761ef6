package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

func TestFromSuggestion(t *testing.T) {
	t.Parallel()

	f := &types.FileDescriptor{Path: "/in/a.png", Filename: "a.png", Category: types.CategoryImage}

	tests := []struct {
		action  suggest.Action
		toTrash bool
		want    oplog.OpType
	}{
		{suggest.ActionMove, false, oplog.OpMove},
		{suggest.ActionCopy, false, oplog.OpCopy},
		{suggest.ActionDelete, true, oplog.OpDelete},
		{suggest.ActionArchive, false, oplog.OpArchive},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			t.Parallel()
			req, err := executor.FromSuggestion(suggest.Suggestion{
				File: f, Destination: "/out/a.png", RuleName: "r", Confidence: 0.5, Action: tt.action,
			}, tt.toTrash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Type())
			assert.Equal(t, "/in/a.png", req.Source())
		})
	}

	req, err := executor.FromSuggestion(suggest.Suggestion{File: f, Action: suggest.ActionDelete}, true)
	require.NoError(t, err)
	del, ok := req.(executor.DeleteRequest)
	require.True(t, ok)
	assert.True(t, del.ToTrash)

	req, err = executor.FromSuggestion(suggest.Suggestion{File: f, Destination: "/a", Action: suggest.ActionArchive}, false)
	require.NoError(t, err)
	arch, ok := req.(executor.ArchiveRequest)
	require.True(t, ok)
	assert.True(t, arch.Compress)
	assert.True(t, arch.DeleteOriginal)

	_, err = executor.FromSuggestion(suggest.Suggestion{File: f, Action: "teleport"}, false)
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = executor.FromSuggestion(suggest.Suggestion{Action: suggest.ActionMove}, false)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestRenameTarget(t *testing.T) {
	t.Parallel()
	r := executor.RenameRequest{Src: "/a/b/c.txt", NewName: "d.txt"}
	assert.Equal(t, "/a/b/d.txt", r.Target())
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "REQUESTED", executor.StateRequested.String())
	assert.Equal(t, "IN_PROGRESS", executor.StateInProgress.String())
	assert.Equal(t, "COMMITTED", executor.StateCommitted.String())
	assert.Equal(t, "FAILED", executor.StateFailed.String())
	assert.True(t, executor.StateFailed.Terminal())
	assert.False(t, executor.StateInProgress.Terminal())
}
