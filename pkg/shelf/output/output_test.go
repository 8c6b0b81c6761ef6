package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
	"github.com/jamesainslie/shelf/pkg/shelf/undo"
)

var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func ptr(f float64) *float64 { return &f }

func sampleSuggestions() []suggest.Suggestion {
	return []suggest.Suggestion{
		{
			File:        &types.FileDescriptor{Path: "/dl/Screenshot 2024-01-01.png", Size: 2048},
			Destination: "/pix/2024-01/Screenshot 2024-01-01.png",
			RuleName:    "Screenshots",
			Confidence:  1,
			Action:      suggest.ActionMove,
		},
		{
			File:                 &types.FileDescriptor{Path: "/dl/setup.dmg", Size: 1024},
			RuleName:             "Old Installers",
			Confidence:           0.5,
			Action:               suggest.ActionDelete,
			RequiresConfirmation: true,
		},
	}
}

func sampleHistory() []oplog.Record {
	undoneAt := now.Add(-time.Minute)
	return []oplog.Record{
		{ID: 2, Type: oplog.OpCopy, Source: "/a", Destination: "/b", CreatedAt: now.Add(-time.Hour)},
		{ID: 1, Type: oplog.OpMove, Source: "/c|d", Destination: "/e", RuleName: "Docs", Confidence: ptr(0.75),
			CreatedAt: now.Add(-2 * time.Hour), UndoneAt: &undoneAt},
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"pretty", "plain", "json", "yaml", "tsv", "csv", "markdown", "paths", "template"} {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := Get("xml")
	assert.Error(t, err)
	assert.Contains(t, Available(), "pretty")
}

func TestSuggestionsReport(t *testing.T) {
	r := Suggestions("/dl", sampleSuggestions(), true)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, KindSuggestions, r.Kind)
	assert.Equal(t, "move", r.Entries[0].Action)
	assert.Equal(t, "2.0 KiB", r.Entries[0].SizeHuman)
	assert.True(t, r.Entries[1].Confirm)
	assert.Equal(t, Summary{Total: 2, OK: 2, TotalSize: 3072}, r.Summary())
}

func TestHistoryReport(t *testing.T) {
	r := History(sampleHistory(), now)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, StatusActive, r.Entries[0].Status)
	assert.Equal(t, "1 hour ago", r.Entries[0].When)
	assert.Equal(t, StatusUndone, r.Entries[1].Status)
}

func TestResultsReport(t *testing.T) {
	batch := executor.Batch{
		ID: "b-1",
		Results: []executor.Result{
			{
				Request: executor.MoveRequest{Src: "/a", Dst: "/b"},
				State:   executor.StateCommitted,
				Record:  &oplog.Record{ID: 9, Type: oplog.OpMove, Source: "/a", Destination: "/b"},
			},
			{
				Request: executor.RenameRequest{Src: "/x/a.txt", NewName: "b.txt"},
				State:   executor.StateFailed,
				Err:     types.NewOpError("rename", "/x/a.txt", types.ErrNotFound, nil),
			},
		},
	}

	r := Results("/", batch)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, StatusCommitted, r.Entries[0].Status)
	assert.Equal(t, int64(9), r.Entries[0].ID)
	assert.Equal(t, StatusFailed, r.Entries[1].Status)
	assert.Equal(t, "/x/b.txt", r.Entries[1].Destination)
	assert.Contains(t, r.Entries[1].Reason, "not found")
	assert.Equal(t, Summary{Total: 2, OK: 1, Failed: 1}, r.Summary())
}

func TestUndoReport(t *testing.T) {
	recs := sampleHistory()
	r := Undo([]undo.Outcome{
		{ID: 2, Record: &recs[0]},
		{ID: 7, Err: errors.New("operation 7 not found")},
	}, now)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, StatusActive, r.Entries[0].Status)
	assert.Equal(t, StatusFailed, r.Entries[1].Status)
	assert.Equal(t, int64(7), r.Entries[1].ID)
}

func TestPrettyFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, Suggestions("/dl", sampleSuggestions(), true)))
	out := buf.String()
	assert.Contains(t, out, "Suggestions")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Screenshot 2024-01-01.png")
	assert.Contains(t, out, "→")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "needs confirmation")

	buf.Reset()
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, Suggestions("/dl", nil, false)))
	assert.Contains(t, buf.String(), "Nothing to organize")

	buf.Reset()
	r := History(sampleHistory(), now)
	r.Warnings = []string{"log is large"}
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	assert.Contains(t, buf.String(), "#2")
	assert.Contains(t, buf.String(), "undone")
	assert.Contains(t, buf.String(), "log is large")
}

func TestTabularFormatters(t *testing.T) {
	r := History(sampleHistory(), now)

	tests := []struct {
		name  string
		f     Formatter
		lines []string
	}{
		{
			name:  "tsv",
			f:     &TSVFormatter{},
			lines: []string{"ID\tACTION\tSTATUS\tCONF\tSOURCE\tDESTINATION\tRULE", "2\tcopy\tactive\t-\t/a\t/b\t", "1\tmove\tundone\t75%\t/c|d\t/e\tDocs"},
		},
		{
			name:  "csv",
			f:     &CSVFormatter{},
			lines: []string{"ID,ACTION,STATUS,CONF,SOURCE,DESTINATION,RULE", "2,copy,active,-,/a,/b,", "1,move,undone,75%,/c|d,/e,Docs"},
		},
		{
			name:  "markdown",
			f:     &MarkdownFormatter{},
			lines: []string{"| ID | ACTION | STATUS | CONF | SOURCE | DESTINATION | RULE |", "|------|------|------|------|------|------|------|", "| 2 | copy | active | - | /a | /b |  |", `| 1 | move | undone | 75% | /c\|d | /e | Docs |`},
		},
		{
			name:  "paths",
			f:     &PathsFormatter{},
			lines: []string{"/b", "/e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.f.Format(&buf, r))
			assert.Equal(t, tt.lines, strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n"))
		})
	}
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, Suggestions("/dl", sampleSuggestions(), false)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ACTION"))
	assert.Contains(t, lines[2], "delete")
	assert.Contains(t, lines[2], "50%")
	assert.Contains(t, lines[2], " - ")
}

func TestStructuredFormatters(t *testing.T) {
	r := Suggestions("/dl", sampleSuggestions(), true)

	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, r))
	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, KindSuggestions, doc.Kind)
	assert.True(t, doc.DryRun)
	assert.Len(t, doc.Entries, 2)
	assert.Equal(t, 2, doc.Summary.Total)

	buf.Reset()
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, r))
	var ydoc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &ydoc))
	assert.Equal(t, "/dl", ydoc.Source)
	assert.Len(t, ydoc.Entries, 2)

	buf.Reset()
	require.NoError(t, (&JSONFormatter{}).Format(&buf, &Report{Kind: KindHistory}))
	assert.Contains(t, buf.String(), `"entries": []`)
}

func TestTemplateFormatter(t *testing.T) {
	r := History(sampleHistory(), now)

	t.Run("default", func(t *testing.T) {
		f, err := Get("template")
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, r))
		assert.Equal(t, "copy\t/a\t/b\nmove\t/c|d\t/e\n", buf.String())
	})

	t.Run("custom with functions", func(t *testing.T) {
		f := NewTemplateFormatter(
			`{{range .Entries}}#{{.ID}} {{date .Time "15:04"}} {{percent .Confidence}} {{bytes .Size}}|{{end}}{{.Summary.Total}}`)

		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, r))
		assert.Equal(t, "#2 11:00  0 B|#1 10:00 75% 0 B|2", buf.String())
	})

	t.Run("parse error", func(t *testing.T) {
		f := NewTemplateFormatter("{{range}")
		var buf bytes.Buffer
		assert.Error(t, f.Format(&buf, r))
	})
}
