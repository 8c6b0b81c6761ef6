package rules

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/jamesainslie/shelf/pkg/shelf/logging"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Match is a rule that matched a file, with its confidence.
type Match struct {
	Rule       Rule
	Confidence float64

	// Destination is filled in by the destination resolver.
	Destination string
}

// Evaluation is the detailed score of one rule against one file.
type Evaluation struct {
	Matched    bool
	Confidence float64
	Satisfied  int
	Total      int
}

// Matcher evaluates files against rule sets.
type Matcher struct {
	clock  types.Clock
	logger *logging.Logger
}

// NewMatcher creates a matcher. A nil clock uses the system clock.
func NewMatcher(clock types.Clock) *Matcher {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Matcher{
		clock:  clock,
		logger: logging.Get("rules"),
	}
}

// Match returns the highest-priority enabled rule that matches f.
func (m *Matcher) Match(f *types.FileDescriptor, set *RuleSet) (Match, bool) {
	for _, cr := range set.snapshot() {
		if !cr.rule.IsEnabled() {
			continue
		}
		ev := m.evaluate(f, cr)
		if ev.Matched {
			m.logger.Debug("rule matched",
				"rule", cr.rule.Name, "path", f.Path, "confidence", ev.Confidence)
			return Match{Rule: cr.rule, Confidence: ev.Confidence}, true
		}
	}
	return Match{}, false
}

// MatchAll returns every matching enabled rule ordered by descending
// confidence. Ties keep priority order.
func (m *Matcher) MatchAll(f *types.FileDescriptor, set *RuleSet) []Match {
	var matches []Match
	for _, cr := range set.snapshot() {
		if !cr.rule.IsEnabled() {
			continue
		}
		if ev := m.evaluate(f, cr); ev.Matched {
			matches = append(matches, Match{Rule: cr.rule, Confidence: ev.Confidence})
		}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})
	return matches
}

// Evaluate scores a single rule against f. Invalid rules never match.
func (m *Matcher) Evaluate(f *types.FileDescriptor, r Rule) Evaluation {
	cr, err := compile(r)
	if err != nil {
		m.logger.Warn("skipping invalid rule", "rule", r.Name, "error", err)
		return Evaluation{}
	}
	return m.evaluate(f, cr)
}

func (m *Matcher) evaluate(f *types.FileDescriptor, cr *compiledRule) Evaluation {
	c := &cr.rule.Match
	ev := Evaluation{Total: c.DeclaredCount()}
	if ev.Total == 0 {
		return ev
	}

	// Hard predicates veto the rule outright.
	if len(cr.exts) > 0 {
		if _, ok := cr.exts[types.NormalizeExtension(f.Extension)]; !ok {
			return Evaluation{Total: ev.Total}
		}
		ev.Satisfied++
	}
	if c.Category != "" {
		if !strings.EqualFold(c.Category, string(f.Category)) {
			return Evaluation{Total: ev.Total}
		}
		ev.Satisfied++
	}
	if cr.location != "" {
		if !underLocation(f.Path, cr.location) {
			return Evaluation{Total: ev.Total}
		}
		ev.Satisfied++
	}

	// Soft predicates only contribute.
	if len(cr.globs) > 0 && matchesAnyGlob(f.Filename, cr.globs) {
		ev.Satisfied++
	}
	if c.HasExif != nil && f.Metadata.HasExif() == *c.HasExif {
		ev.Satisfied++
	}
	if len(cr.contains) > 0 && containsAny(f.Text, cr.contains) {
		ev.Satisfied++
	}
	now := m.clock.Now()
	if cr.age != nil && cr.age.Matches(f.Modified, now) {
		ev.Satisfied++
	}
	if cr.accessed != nil && cr.accessed.Matches(f.Accessed, now) {
		ev.Satisfied++
	}

	if ev.Satisfied == 0 {
		return Evaluation{Total: ev.Total}
	}
	ev.Matched = true
	ev.Confidence = float64(ev.Satisfied) / float64(ev.Total)
	return ev
}

func underLocation(path, location string) bool {
	p := filepath.Clean(path)
	if p == location {
		return true
	}
	prefix := location
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

func matchesAnyGlob(name string, globs []*regexp.Regexp) bool {
	for _, re := range globs {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func containsAny(text string, subs []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, s := range subs {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
