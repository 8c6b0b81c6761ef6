package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
	"github.com/jamesainslie/shelf/pkg/shelf/output"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// testEnv is a config, an inbox with two files and an app over them.
type testEnv struct {
	app      *app
	inbox    string
	pictures string
	docs     string
	out      *bytes.Buffer
	cmd      *cobra.Command
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, "")
}

// newTestEnvWith appends extra to the generated config file.
func newTestEnvWith(t *testing.T, extra string) *testEnv {
	t.Helper()
	viper.Reset()
	viper.Set("output", "json")
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	env := &testEnv{
		inbox:    filepath.Join(dir, "inbox"),
		pictures: filepath.Join(dir, "Pictures"),
		docs:     filepath.Join(dir, "Docs"),
		out:      &bytes.Buffer{},
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`destinations:
  pictures: %s
  documents: %s
oplog:
  backend: sqlite
  path: %s
trash:
  dir: %s
`, env.pictures, env.docs, filepath.Join(dir, "oplog.db"), filepath.Join(dir, "trash")) + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)

	a, err := newApp(cfg, afero.NewOsFs())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	env.app = a

	stamp := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	for name, data := range map[string]string{
		"Screenshot 2024.png": "png",
		"report.pdf":          "pdf",
	} {
		p := filepath.Join(env.inbox, name)
		require.NoError(t, os.MkdirAll(env.inbox, 0o755))
		require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
		require.NoError(t, os.Chtimes(p, stamp, stamp))
	}

	env.cmd = &cobra.Command{}
	env.cmd.SetOut(env.out)
	return env
}

type jsonReport struct {
	Kind     output.Kind    `json:"kind"`
	DryRun   bool           `json:"dry_run"`
	Entries  []output.Entry `json:"entries"`
	Summary  output.Summary `json:"summary"`
	Warnings []string       `json:"warnings"`
}

func (e *testEnv) report(t *testing.T) jsonReport {
	t.Helper()
	var r jsonReport
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &r))
	e.out.Reset()
	return r
}

func entryFor(t *testing.T, r jsonReport, source string) output.Entry {
	t.Helper()
	for _, e := range r.Entries {
		if e.Source == source {
			return e
		}
	}
	t.Fatalf("no entry for %s in %+v", source, r.Entries)
	return output.Entry{}
}

func TestOrganizeDryRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, organize(ctx, env.app, env.inbox, organizeOptions{}, nil, env.cmd))

	r := env.report(t)
	assert.Equal(t, output.KindSuggestions, r.Kind)
	assert.True(t, r.DryRun)
	require.Len(t, r.Entries, 2)

	shot := entryFor(t, r, filepath.Join(env.inbox, "Screenshot 2024.png"))
	assert.Equal(t, filepath.Join(env.pictures, "Screenshots", "2024-03", "Screenshot 2024.png"), shot.Destination)
	assert.Equal(t, rules.RuleScreenshots, shot.Rule)
	assert.False(t, shot.Confirm)

	doc := entryFor(t, r, filepath.Join(env.inbox, "report.pdf"))
	assert.Equal(t, filepath.Join(env.docs, "2024", "report.pdf"), doc.Destination)
	assert.True(t, doc.Confirm)

	assert.FileExists(t, filepath.Join(env.inbox, "Screenshot 2024.png"))
	recs, err := env.app.store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOrganizeFilters(t *testing.T) {
	env := newTestEnv(t)

	opts := organizeOptions{Categories: []string{"document"}}
	require.NoError(t, organize(context.Background(), env.app, env.inbox, opts, nil, env.cmd))
	r := env.report(t)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, rules.RuleDocuments, r.Entries[0].Rule)

	opts = organizeOptions{Categories: []string{"spreadsheet"}}
	err := organize(context.Background(), env.app, env.inbox, opts, nil, env.cmd)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestOrganizeAutoAndUndo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shot := filepath.Join(env.inbox, "Screenshot 2024.png")
	moved := filepath.Join(env.pictures, "Screenshots", "2024-03", "Screenshot 2024.png")

	require.NoError(t, organize(ctx, env.app, env.inbox, organizeOptions{Auto: true, Trash: true}, nil, env.cmd))

	r := env.report(t)
	assert.Equal(t, output.KindResults, r.Kind)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, output.StatusCommitted, r.Entries[0].Status)
	assert.Equal(t, 1, r.Summary.OK)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "1 suggestion(s) need confirmation")

	assert.NoFileExists(t, shot)
	assert.FileExists(t, moved)
	assert.FileExists(t, filepath.Join(env.inbox, "report.pdf"))

	require.NoError(t, undoOperations(ctx, env.app.undo, undoOptions{AllRecent: true}, env.cmd))
	r = env.report(t)
	assert.Equal(t, output.KindUndo, r.Kind)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, output.StatusUndone, r.Entries[0].Status)

	assert.FileExists(t, shot)
	assert.NoFileExists(t, moved)

	err := undoOperations(ctx, env.app.undo, undoOptions{Last: 1}, env.cmd)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestOrganizeRelativeTemplateLandsUnderRoot(t *testing.T) {
	env := newTestEnvWith(t, `rules:
  - name: Screenshots
    priority: 300
    match:
      extension: [png]
      filename: ["Screenshot*"]
    action:
      move_to: "Pix/{year}-{month}/"
`)
	ctx := context.Background()
	t.Chdir(t.TempDir())

	shot := filepath.Join(env.inbox, "Screenshot 2024.png")
	moved := filepath.Join(env.inbox, "Pix", "2024-03", "Screenshot 2024.png")

	require.NoError(t, organize(ctx, env.app, env.inbox, organizeOptions{Auto: true, Trash: true}, nil, env.cmd))
	r := env.report(t)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, moved, r.Entries[0].Destination)
	assert.FileExists(t, moved)
	assert.NoFileExists(t, filepath.Join("Pix", "2024-03", "Screenshot 2024.png"))

	// The organized file resolves onto itself and is not suggested again.
	require.NoError(t, organize(ctx, env.app, env.inbox, organizeOptions{Recursive: true}, nil, env.cmd))
	r = env.report(t)
	for _, e := range r.Entries {
		assert.NotEqual(t, moved, e.Source)
	}

	t.Chdir(t.TempDir())
	require.NoError(t, undoOperations(ctx, env.app.undo, undoOptions{Last: 1}, env.cmd))
	env.report(t)
	assert.FileExists(t, shot)
	assert.NoFileExists(t, moved)
}

func TestOrganizeInteractive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var prompts bytes.Buffer
	env.cmd.SetOut(&prompts)

	// Both suggestions are approved, the one needing confirmation included.
	require.NoError(t, organize(ctx, env.app, env.inbox, organizeOptions{Interactive: true},
		strings.NewReader("a\n"), env.cmd))
	assert.Contains(t, prompts.String(), "[1/2]")
	assert.NoFileExists(t, filepath.Join(env.inbox, "report.pdf"))
	assert.FileExists(t, filepath.Join(env.docs, "2024", "report.pdf"))

	recs, err := env.app.store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestConfirm(t *testing.T) {
	ss := make([]suggest.Suggestion, 3)
	for i := range ss {
		f := types.NewFileDescriptor(fmt.Sprintf("/in/%d.txt", i))
		ss[i] = suggest.Suggestion{File: &f, Destination: "/out", Action: suggest.ActionMove, RuleName: "r"}
	}

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "yes then no", input: "y\nn\n", want: 1},
		{name: "all", input: "n\na\n", want: 2},
		{name: "quit", input: "y\nq\n", want: 1},
		{name: "empty input", input: "", want: 0},
		{name: "last answer without newline", input: "n\ny\nyes", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(ss, strings.NewReader(tt.input), &out)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestOrganizeOptionsFrom(t *testing.T) {
	cfg := &config.Config{Organize: config.OrganizeConfig{
		Mode: "local", MinConfidence: 0.5, Trash: true, Parallel: 2,
	}}

	t.Run("config defaults", func(t *testing.T) {
		cmd := &cobra.Command{}
		addOrganizeFlags(cmd.Flags())

		opts, err := organizeOptionsFrom(cmd, cfg)
		require.NoError(t, err)
		assert.True(t, opts.Local)
		assert.True(t, opts.Trash)
		assert.Equal(t, 0.5, opts.MinConfidence)
		assert.Equal(t, 2, opts.Parallel)
	})

	t.Run("flags override", func(t *testing.T) {
		cmd := &cobra.Command{}
		addOrganizeFlags(cmd.Flags())
		require.NoError(t, cmd.Flags().Parse([]string{
			"--confidence", "0.9", "--no-trash", "-p", "4", "--category", "image, video", "--auto",
		}))

		opts, err := organizeOptionsFrom(cmd, cfg)
		require.NoError(t, err)
		assert.True(t, opts.Auto)
		assert.False(t, opts.Trash)
		assert.Equal(t, 0.9, opts.MinConfidence)
		assert.Equal(t, 4, opts.Parallel)
		assert.Equal(t, []string{"image", "video"}, opts.Categories)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		cmd := &cobra.Command{}
		addOrganizeFlags(cmd.Flags())
		require.NoError(t, cmd.Flags().Parse([]string{"--confidence", "1.5"}))

		_, err := organizeOptionsFrom(cmd, cfg)
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}
