// Package output provides formatters for displaying shelf suggestions,
// execution results, history and undo outcomes in various output formats
// (pretty, plain, json, yaml, tsv, csv, markdown, paths).
//
// The package uses a registry pattern so the CLI can select a formatter
// by name at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.History(records, time.Now())); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Kind names what a report lists.
type Kind string

// Report kinds.
const (
	KindSuggestions Kind = "suggestions"
	KindResults     Kind = "results"
	KindHistory     Kind = "history"
	KindUndo        Kind = "undo"
)

// Status is the state of one entry.
type Status string

// Entry statuses.
const (
	StatusSuggested Status = "suggested"
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
	StatusActive    Status = "active"
	StatusUndone    Status = "undone"
)

// Entry is one row of a report.
type Entry struct {
	// ID is the operation id; zero for suggestions and failed requests.
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`

	Action      string   `json:"action" yaml:"action"`
	Status      Status   `json:"status" yaml:"status"`
	Source      string   `json:"source" yaml:"source"`
	Destination string   `json:"destination,omitempty" yaml:"destination,omitempty"`
	Rule        string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	// Confirm is set on suggestions that need explicit approval.
	Confirm bool `json:"confirm,omitempty" yaml:"confirm,omitempty"`

	// Reason explains a failure.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
	SizeHuman string `json:"size_human,omitempty" yaml:"size_human,omitempty"`

	// Time is when the operation was recorded.
	Time time.Time `json:"time,omitempty" yaml:"time,omitempty"`

	// When is Time relative to the report, e.g. "3 minutes ago".
	When string `json:"when,omitempty" yaml:"when,omitempty"`

	// BatchID groups entries executed together.
	BatchID string `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
}

// Summary counts the entries of a report.
type Summary struct {
	Total     int   `json:"total" yaml:"total"`
	OK        int   `json:"ok" yaml:"ok"`
	Failed    int   `json:"failed" yaml:"failed"`
	TotalSize int64 `json:"total_size" yaml:"total_size"`
}

// Report contains the complete output data for formatting.
type Report struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// Source is the organized directory, when there is one.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// DryRun marks suggestions that will not be executed.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	Entries  []Entry  `json:"entries" yaml:"entries"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	Elapsed time.Duration `json:"-" yaml:"-"`
}

// Summary returns the entry counts.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Entries)}
	for _, e := range r.Entries {
		s.TotalSize += e.Size
		if e.Status == StatusFailed {
			s.Failed++
		} else {
			s.OK++
		}
	}
	return s
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
