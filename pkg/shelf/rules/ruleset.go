package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// RuleSet is an owned, priority-ordered collection of validated rules.
// It is safe for concurrent use; Add and Remove are the only mutations.
type RuleSet struct {
	mu    sync.RWMutex
	rules []*compiledRule
}

// compiledRule caches the parsed form of a rule's predicates.
type compiledRule struct {
	rule     Rule
	exts     map[string]struct{}
	globs    []*regexp.Regexp
	contains []string
	location string
	age      *AgeComparator
	accessed *AgeComparator
}

// NewRuleSet validates rules and orders them by descending priority.
// Rules with equal priority keep their given order.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	s := &RuleSet{rules: make([]*compiledRule, 0, len(rules))}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate rule name %q", types.ErrValidation, r.Name)
		}
		seen[r.Name] = struct{}{}

		cr, err := compile(r)
		if err != nil {
			return nil, err
		}
		s.rules = append(s.rules, cr)
	}
	s.sort()
	return s, nil
}

// MustRuleSet is like NewRuleSet but panics on error. Intended for built-in rules and tests.
func MustRuleSet(rules ...Rule) *RuleSet {
	s, err := NewRuleSet(rules...)
	if err != nil {
		panic(err)
	}
	return s
}

// Add validates and inserts a rule. A rule with the same name is rejected.
func (s *RuleSet) Add(r Rule) error {
	cr, err := compile(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.rule.Name == r.Name {
			return fmt.Errorf("%w: duplicate rule name %q", types.ErrValidation, r.Name)
		}
	}
	s.rules = append(s.rules, cr)
	s.sort()
	return nil
}

// Remove deletes the named rule and reports whether it existed.
func (s *RuleSet) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.rules, func(cr *compiledRule) bool { return cr.rule.Name == name })
	if i < 0 {
		return false
	}
	s.rules = slices.Delete(s.rules, i, i+1)
	return true
}

// Get returns the named rule.
func (s *RuleSet) Get(name string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cr := range s.rules {
		if cr.rule.Name == name {
			return cr.rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the rules in evaluation order.
func (s *RuleSet) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, len(s.rules))
	for i, cr := range s.rules {
		out[i] = cr.rule
	}
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// snapshot returns the compiled rules in evaluation order.
func (s *RuleSet) snapshot() []*compiledRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules)
}

// sort orders rules by descending priority. Must be called with s.mu held
// or before the set is shared.
func (s *RuleSet) sort() {
	slices.SortStableFunc(s.rules, func(a, b *compiledRule) int {
		return b.rule.Priority - a.rule.Priority
	})
}

func compile(r Rule) (*compiledRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	cr := &compiledRule{rule: r}

	if len(r.Match.Extension) > 0 {
		cr.exts = make(map[string]struct{}, len(r.Match.Extension))
		for _, ext := range r.Match.Extension {
			cr.exts[types.NormalizeExtension(ext)] = struct{}{}
		}
	}

	for _, pattern := range r.Match.Filename {
		re, err := GlobToRegexp(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: filename pattern %q: %v", types.ErrValidation, r.Name, pattern, err)
		}
		cr.globs = append(cr.globs, re)
	}

	for _, sub := range r.Match.Contains {
		cr.contains = append(cr.contains, strings.ToLower(sub))
	}

	if r.Match.Location != "" {
		cr.location = expandLocation(r.Match.Location)
	}

	if r.Match.Age != "" {
		age, err := ParseAge(r.Match.Age)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", types.ErrValidation, r.Name, err)
		}
		cr.age = &age
	}
	if r.Match.Accessed != "" {
		accessed, err := ParseAge(r.Match.Accessed)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", types.ErrValidation, r.Name, err)
		}
		cr.accessed = &accessed
	}

	return cr, nil
}

// expandLocation expands a leading ~ and cleans the prefix.
func expandLocation(loc string) string {
	if loc == "~" || strings.HasPrefix(loc, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			loc = filepath.Join(home, loc[1:])
		}
	}
	return filepath.Clean(loc)
}

// MergeRules overlays custom rules onto defaults. A custom rule replaces the
// default with the same name; the rest are appended in their given order.
func MergeRules(defaults, custom []Rule) []Rule {
	merged := make([]Rule, 0, len(defaults)+len(custom))
	overrides := make(map[string]Rule, len(custom))
	for _, r := range custom {
		overrides[r.Name] = r
	}

	for _, r := range defaults {
		if o, ok := overrides[r.Name]; ok {
			merged = append(merged, o)
			delete(overrides, r.Name)
			continue
		}
		merged = append(merged, r)
	}
	for _, r := range custom {
		if _, pending := overrides[r.Name]; pending {
			merged = append(merged, r)
		}
	}
	return merged
}
