package suggest

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// FilterOption narrows a suggestion list.
type FilterOption func(*filter)

type filter struct {
	minConfidence   float64
	actions         []Action
	categories      []types.Category
	skipConfirmable bool
}

// WithMinConfidence keeps suggestions with confidence >= min.
func WithMinConfidence(min float64) FilterOption {
	return func(f *filter) { f.minConfidence = min }
}

// WithActions keeps suggestions whose action is one of actions.
func WithActions(actions ...Action) FilterOption {
	return func(f *filter) { f.actions = append(f.actions, actions...) }
}

// WithCategories keeps suggestions whose file category is one of cats.
func WithCategories(cats ...types.Category) FilterOption {
	return func(f *filter) { f.categories = append(f.categories, cats...) }
}

// WithoutConfirmation drops suggestions that require confirmation.
func WithoutConfirmation() FilterOption {
	return func(f *filter) { f.skipConfirmable = true }
}

// Filter returns the suggestions that pass every option. The input is not
// modified.
func Filter(suggestions []Suggestion, opts ...FilterOption) []Suggestion {
	var f filter
	for _, opt := range opts {
		opt(&f)
	}

	out := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Confidence < f.minConfidence {
			continue
		}
		if len(f.actions) > 0 && !slices.Contains(f.actions, s.Action) {
			continue
		}
		if len(f.categories) > 0 && !hasCategory(f.categories, s.File) {
			continue
		}
		if f.skipConfirmable && s.RequiresConfirmation {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasCategory(cats []types.Category, f *types.FileDescriptor) bool {
	if f == nil {
		return false
	}
	return slices.ContainsFunc(cats, func(c types.Category) bool {
		return strings.EqualFold(string(c), string(f.Category))
	})
}

// GroupByDestination groups suggestions by the parent directory of their
// destination. Deletes are grouped under "".
func GroupByDestination(suggestions []Suggestion) map[string][]Suggestion {
	groups := make(map[string][]Suggestion)
	for _, s := range suggestions {
		key := ""
		if s.Destination != "" {
			key = filepath.Dir(s.Destination)
		}
		groups[key] = append(groups[key], s)
	}
	return groups
}

// GroupByAction groups suggestions by action.
func GroupByAction(suggestions []Suggestion) map[Action][]Suggestion {
	groups := make(map[Action][]Suggestion)
	for _, s := range suggestions {
		groups[s.Action] = append(groups[s.Action], s)
	}
	return groups
}
