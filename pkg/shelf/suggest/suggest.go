// Package suggest turns rule matches into actionable suggestions and
// provides side-effect-free filtering and grouping over them.
package suggest

import (
	"path/filepath"
	"slices"

	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Action is the kind of filesystem action a suggestion proposes.
type Action string

// Suggestion actions.
const (
	ActionMove    Action = "move"
	ActionCopy    Action = "copy"
	ActionDelete  Action = "delete"
	ActionArchive Action = "archive"
)

// Suggestion is a proposed, not yet applied, action for one file.
type Suggestion struct {
	File *types.FileDescriptor

	// Destination is empty for deletes.
	Destination string

	RuleName             string
	Confidence           float64
	Action               Action
	RequiresConfirmation bool
}

// Builder builds suggestions from a rule set. A Builder is safe for
// concurrent use as long as its RuleSet is.
type Builder struct {
	matcher  *rules.Matcher
	set      *rules.RuleSet
	resolver *destination.Resolver
	mode     destination.Mode
	logger   *logging.Logger
}

// NewBuilder creates a builder.
func NewBuilder(matcher *rules.Matcher, set *rules.RuleSet, resolver *destination.Resolver, mode destination.Mode) *Builder {
	return &Builder{
		matcher:  matcher,
		set:      set,
		resolver: resolver,
		mode:     mode,
		logger:   logging.Get("suggest"),
	}
}

// GenerateSuggestion returns the suggestion for f, or false when no rule
// matches or the file is already where it would go.
func (b *Builder) GenerateSuggestion(f *types.FileDescriptor) (Suggestion, bool) {
	match, ok := b.matcher.Match(f, b.set)
	if !ok {
		return Suggestion{}, false
	}
	return b.FromMatch(f, match)
}

// FromMatch converts a rule match for f into a suggestion.
func (b *Builder) FromMatch(f *types.FileDescriptor, match rules.Match) (Suggestion, bool) {
	rule := match.Rule
	s := Suggestion{
		File:       f,
		RuleName:   rule.Name,
		Confidence: match.Confidence,
	}

	switch {
	case rule.Action.Delete:
		s.Action = ActionDelete
		s.RequiresConfirmation = rule.Action.Confirm == nil || *rule.Action.Confirm
		return s, true
	case rule.Action.Archive != "":
		s.Action = ActionArchive
		s.RequiresConfirmation = rule.Action.Confirm != nil && *rule.Action.Confirm
	case rule.Action.Suggest != "":
		s.Action = ActionMove
		s.RequiresConfirmation = true
	default:
		s.Action = ActionMove
		s.RequiresConfirmation = rule.Action.Confirm != nil && *rule.Action.Confirm
	}

	dest, ok := match.Destination, match.Destination != ""
	if !ok {
		dest, ok = b.resolver.Resolve(f, &rule, b.mode)
	}
	if !ok {
		return Suggestion{}, false
	}
	if filepath.Clean(dest) == filepath.Clean(f.Path) {
		b.logger.Debug("already in place", "path", f.Path, "rule", rule.Name)
		return Suggestion{}, false
	}
	s.Destination = dest
	return s, true
}

// GenerateSuggestions returns one suggestion per file that has one,
// ordered by descending confidence.
func (b *Builder) GenerateSuggestions(files []*types.FileDescriptor) []Suggestion {
	out := make([]Suggestion, 0, len(files))
	for _, f := range files {
		if s, ok := b.GenerateSuggestion(f); ok {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})
	b.logger.Debug("generated suggestions", "files", len(files), "suggestions", len(out))
	return out
}
