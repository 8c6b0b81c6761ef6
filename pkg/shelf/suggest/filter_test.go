package suggest_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

func sample() []suggest.Suggestion {
	img := &types.FileDescriptor{Path: "/in/a.png", Category: types.CategoryImage}
	doc := &types.FileDescriptor{Path: "/in/b.pdf", Category: types.CategoryDocument}
	dmg := &types.FileDescriptor{Path: "/in/c.dmg", Category: types.CategoryInstaller}
	return []suggest.Suggestion{
		{File: img, Destination: "/pics/2024/a.png", Confidence: 1, Action: suggest.ActionMove},
		{File: doc, Destination: "/docs/b.pdf", Confidence: 0.5, Action: suggest.ActionMove, RequiresConfirmation: true},
		{File: dmg, Confidence: 0.75, Action: suggest.ActionDelete, RequiresConfirmation: true},
		{File: img, Destination: "/pics/2024/a-copy.png", Confidence: 0.8, Action: suggest.ActionArchive},
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []suggest.FilterOption
		want int
	}{
		{"no options", nil, 4},
		{"min confidence inclusive", []suggest.FilterOption{suggest.WithMinConfidence(0.75)}, 3},
		{"actions", []suggest.FilterOption{suggest.WithActions(suggest.ActionMove, suggest.ActionArchive)}, 3},
		{"categories", []suggest.FilterOption{suggest.WithCategories("IMAGE")}, 2},
		{"without confirmation", []suggest.FilterOption{suggest.WithoutConfirmation()}, 2},
		{"combined", []suggest.FilterOption{
			suggest.WithMinConfidence(0.6),
			suggest.WithoutConfirmation(),
			suggest.WithActions(suggest.ActionMove),
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := sample()
			got := suggest.Filter(in, tt.opts...)
			assert.Len(t, got, tt.want)
			assert.Equal(t, sample(), in)
		})
	}
}

func TestGroupByDestination(t *testing.T) {
	t.Parallel()

	groups := suggest.GroupByDestination(sample())
	assert.Len(t, groups[filepath.Dir("/pics/2024/a.png")], 2)
	assert.Len(t, groups["/docs"], 1)
	assert.Len(t, groups[""], 1)
}

func TestGroupByAction(t *testing.T) {
	t.Parallel()

	groups := suggest.GroupByAction(sample())
	assert.Len(t, groups[suggest.ActionMove], 2)
	assert.Len(t, groups[suggest.ActionDelete], 1)
	assert.Len(t, groups[suggest.ActionArchive], 1)
	assert.Empty(t, groups[suggest.ActionCopy])
}
