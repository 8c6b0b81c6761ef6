package output

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// document is the structure shared by the JSON and YAML formatters.
type document struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Entries  []Entry  `json:"entries" yaml:"entries"`
	Summary  Summary  `json:"summary" yaml:"summary"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newDocument(r *Report) document {
	entries := r.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return document{
		Kind:     r.Kind,
		Source:   r.Source,
		DryRun:   r.DryRun,
		Entries:  entries,
		Summary:  r.Summary(),
		Warnings: r.Warnings,
	}
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDocument(r))
}

// YAMLFormatter formats output as YAML with the same structure as JSON.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(newDocument(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("yaml", func() Formatter { return &YAMLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
)
