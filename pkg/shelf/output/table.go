package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

// columns returns the header and rows shared by the tabular formatters.
func columns(r *Report) ([]string, [][]string) {
	header := []string{"ID", "ACTION", "STATUS", "CONF", "SOURCE", "DESTINATION", "RULE"}
	if r.Kind == KindSuggestions {
		header = []string{"ACTION", "CONF", "SOURCE", "DESTINATION", "RULE"}
	}

	rows := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if r.Kind == KindSuggestions {
			rows = append(rows, []string{e.Action, confidence(e.Confidence), e.Source, e.Destination, e.Rule})
			continue
		}
		id := ""
		if e.ID != 0 {
			id = strconv.FormatInt(e.ID, 10)
		}
		rows = append(rows, []string{id, e.Action, string(e.Status), confidence(e.Confidence), e.Source, e.Destination, e.Rule})
	}
	return header, rows
}

func confidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *c*100)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// PlainFormatter formats output as an aligned, unstyled table.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	header, rows := columns(r)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = dash(c)
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// TSVFormatter formats output as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	header, rows := columns(r)
	w.WriteString(strings.Join(header, "\t"))
	w.WriteByte('\n')
	for _, row := range rows {
		w.WriteString(strings.Join(row, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

// CSVFormatter formats output as comma-separated values with proper quoting.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	writer := csv.NewWriter(w)
	header, rows := columns(r)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Report) error {
	header, rows := columns(r)
	w.WriteString("| " + strings.Join(header, " | ") + " |\n")
	w.WriteString("|" + strings.Repeat("------|", len(header)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = escapeMarkdownPipe(c)
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return nil
}

// escapeMarkdownPipe escapes pipe characters in a string for Markdown tables.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// PathsFormatter writes one path per line: the destination when there is
// one, the source otherwise.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, e := range r.Entries {
		if e.Destination != "" {
			w.WriteString(e.Destination)
		} else {
			w.WriteString(e.Source)
		}
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
	Register("tsv", func() Formatter { return &TSVFormatter{} })
	Register("csv", func() Formatter { return &CSVFormatter{} })
	Register("markdown", func() Formatter { return &MarkdownFormatter{} })
	Register("paths", func() Formatter { return &PathsFormatter{} })
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*TSVFormatter)(nil)
	_ Formatter = (*CSVFormatter)(nil)
	_ Formatter = (*MarkdownFormatter)(nil)
	_ Formatter = (*PathsFormatter)(nil)
)
