// Package rules matches file descriptors against a prioritized set of
// organizing rules and scores each match with a confidence in [0, 1].
//
// A rule declares predicates in Conditions. Extension, category and location
// are hard predicates: failing any of them rejects the rule outright. The
// remaining predicates are soft and only lower the confidence. Confidence is
// the fraction of declared predicates the file satisfied.
package rules

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Rule is a named, prioritized predicate and action pair.
type Rule struct {
	// Name is the stable key of the rule.
	Name string `mapstructure:"name" json:"name"`

	// Priority orders evaluation; higher is evaluated first.
	Priority int `mapstructure:"priority" json:"priority"`

	// Enabled disables the rule when explicitly false.
	Enabled *bool `mapstructure:"enabled" json:"enabled,omitempty"`

	Match  Conditions `mapstructure:"match" json:"match"`
	Action Action     `mapstructure:"action" json:"action"`
}

// Conditions holds the predicates of a rule. Empty fields are not declared
// and do not count toward confidence.
type Conditions struct {
	// Extension lists accepted extensions (hard).
	Extension []string `mapstructure:"extension" json:"extension,omitempty"`

	// Filename lists glob patterns matched against the base name (soft).
	Filename []string `mapstructure:"filename" json:"filename,omitempty"`

	// Category is the required content category (hard).
	Category string `mapstructure:"category" json:"category,omitempty"`

	// HasExif requires EXIF data to be present or absent (soft).
	HasExif *bool `mapstructure:"has_exif" json:"has_exif,omitempty"`

	// Contains lists substrings searched in extracted text (soft).
	Contains []string `mapstructure:"contains" json:"contains,omitempty"`

	// Location is a required path prefix (hard).
	Location string `mapstructure:"location" json:"location,omitempty"`

	// Age compares days since modification, e.g. "> 30 days" (soft).
	Age string `mapstructure:"age" json:"age,omitempty"`

	// Accessed compares days since last access (soft).
	Accessed string `mapstructure:"accessed" json:"accessed,omitempty"`
}

// Action describes what to do with a matched file. Exactly one of MoveTo,
// Suggest, Archive and Delete must be set.
type Action struct {
	// MoveTo is a firm move destination template.
	MoveTo string `mapstructure:"move_to" json:"move_to,omitempty"`

	// Suggest is a move destination template that always needs confirmation.
	Suggest string `mapstructure:"suggest" json:"suggest,omitempty"`

	// Archive is an archive destination template.
	Archive string `mapstructure:"archive" json:"archive,omitempty"`

	// Delete removes the file.
	Delete bool `mapstructure:"delete" json:"delete,omitempty"`

	// Confirm overrides whether the action needs confirmation.
	Confirm *bool `mapstructure:"confirm" json:"confirm,omitempty"`

	// LocalTo overrides the local-mode destination with a template
	// relative to the organize root.
	LocalTo string `mapstructure:"local_to" json:"local_to,omitempty"`
}

// IsEnabled reports whether the rule takes part in matching.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Template returns the destination template of the action, or "" for delete.
func (a *Action) Template() string {
	switch {
	case a.MoveTo != "":
		return a.MoveTo
	case a.Suggest != "":
		return a.Suggest
	case a.Archive != "":
		return a.Archive
	default:
		return ""
	}
}

// DeclaredCount returns the number of predicates the conditions declare.
func (c *Conditions) DeclaredCount() int {
	n := 0
	for _, declared := range []bool{
		len(c.Extension) > 0,
		len(c.Filename) > 0,
		c.Category != "",
		c.HasExif != nil,
		len(c.Contains) > 0,
		c.Location != "",
		c.Age != "",
		c.Accessed != "",
	} {
		if declared {
			n++
		}
	}
	return n
}

// Validate checks the rule for structural errors. It returns an error
// wrapping types.ErrValidation.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rule name cannot be empty", types.ErrValidation)
	}

	actions := 0
	for _, set := range []bool{r.Action.MoveTo != "", r.Action.Suggest != "", r.Action.Archive != "", r.Action.Delete} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("%w: rule %q must declare exactly one of move_to, suggest, archive or delete (found %d)",
			types.ErrValidation, r.Name, actions)
	}

	for _, tmpl := range []string{r.Action.Template(), r.Action.LocalTo} {
		if err := validateTemplate(tmpl); err != nil {
			return fmt.Errorf("%w: rule %q: %v", types.ErrValidation, r.Name, err)
		}
	}

	for _, expr := range []string{r.Match.Age, r.Match.Accessed} {
		if expr == "" {
			continue
		}
		if _, err := ParseAge(expr); err != nil {
			return fmt.Errorf("%w: rule %q: %v", types.ErrValidation, r.Name, err)
		}
	}

	for _, pattern := range r.Match.Filename {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%w: rule %q: empty filename pattern", types.ErrValidation, r.Name)
		}
	}

	return nil
}

// validateTemplate rejects unbalanced or nested braces.
func validateTemplate(tmpl string) error {
	open := false
	for i, c := range tmpl {
		switch c {
		case '{':
			if open {
				return fmt.Errorf("nested '{' at offset %d in template %q", i, tmpl)
			}
			open = true
		case '}':
			if !open {
				return fmt.Errorf("unmatched '}' at offset %d in template %q", i, tmpl)
			}
			open = false
		}
	}
	if open {
		return fmt.Errorf("unterminated '{' in template %q", tmpl)
	}
	return nil
}
