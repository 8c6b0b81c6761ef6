package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/scanner"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
	"github.com/jamesainslie/shelf/pkg/shelf/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Organize new files as they arrive",
	Long: `Watch directories and organize every new file once it has stopped
changing. Only suggestions that need no confirmation are applied; the rest
are reported and left in place. Stop with Ctrl-C.

Examples:
  shelf watch ~/Downloads ~/Desktop
  shelf watch --dry-run --settle 10s ~/Downloads`,
	RunE: runWatch,
}

var watchFlags struct {
	recursive bool
	settle    time.Duration
	dryRun    bool
	local     bool
	noTrash   bool
}

func init() {
	f := watchCmd.Flags()
	f.BoolVarP(&watchFlags.recursive, "recursive", "r", false, "also watch subdirectories")
	f.DurationVar(&watchFlags.settle, "settle", watch.DefaultSettle, "how long a file must be unchanged")
	f.BoolVarP(&watchFlags.dryRun, "dry-run", "d", false, "report what would happen without changing files")
	f.BoolVar(&watchFlags.local, "local", false, "organize into folders under each watched directory")
	f.BoolVar(&watchFlags.noTrash, "no-trash", false, "delete permanently instead of using the trash")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := watch.New(watch.Options{
		Recursive: watchFlags.recursive,
		Settle:    watchFlags.settle,
		Exclude:   a.cfg.Exclude,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		if err := w.Watch(abs); err != nil {
			return err
		}
		roots = append(roots, abs)
	}

	org, err := newAutoOrganizer(a, roots, autoOptions{
		Local:         watchFlags.local || strings.EqualFold(a.cfg.Organize.Mode, "local"),
		Trash:         a.cfg.Organize.Trash && !watchFlags.noTrash,
		MinConfidence: a.cfg.Organize.MinConfidence,
		DryRun:        watchFlags.dryRun,
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	printInfo(cmd, "Watching %s (Ctrl-C to stop)", strings.Join(roots, ", "))
	err = w.Run(cmd.Context(), org.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type autoOptions struct {
	Local         bool
	Trash         bool
	MinConfidence float64
	DryRun        bool
}

// autoOrganizer applies the suggestion for one file at a time.
type autoOrganizer struct {
	app      *app
	opts     autoOptions
	builders map[string]*suggest.Builder
	roots    []string
	out      io.Writer
}

func newAutoOrganizer(a *app, roots []string, opts autoOptions, out io.Writer) (*autoOrganizer, error) {
	set, err := a.cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	matcher := rules.NewMatcher(types.SystemClock{})
	resolver := destination.NewResolver(a.cfg.Aliases())

	o := &autoOrganizer{app: a, opts: opts, builders: make(map[string]*suggest.Builder), roots: roots, out: out}
	for _, root := range roots {
		mode := a.cfg.Mode(root)
		if opts.Local {
			mode = destination.LocalMode(root)
		}
		o.builders[root] = suggest.NewBuilder(matcher, set, resolver, mode)
	}
	return o, nil
}

// builderFor returns the builder of the deepest root containing path.
func (o *autoOrganizer) builderFor(path string) *suggest.Builder {
	best := ""
	for _, root := range o.roots {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return o.builders[best]
}

func (o *autoOrganizer) handle(ctx context.Context, path string) {
	builder := o.builderFor(path)
	if builder == nil {
		return
	}

	f, err := scanner.Describe(path, true)
	if err != nil {
		fmt.Fprintf(o.out, "skip %s: %v\n", path, err)
		return
	}
	s, ok := builder.GenerateSuggestion(&f)
	if !ok {
		printVerbose("no rule for %s", path)
		return
	}
	if s.RequiresConfirmation || s.Confidence < o.opts.MinConfidence {
		fmt.Fprintf(o.out, "left %s: %s needs confirmation (%s)\n", path, s.Action, s.RuleName)
		return
	}
	if o.opts.DryRun {
		fmt.Fprintf(o.out, "would %s %s -> %s (%s)\n", s.Action, path, dash(s.Destination), s.RuleName)
		return
	}

	req, err := executor.FromSuggestion(s, o.opts.Trash)
	if err != nil {
		fmt.Fprintf(o.out, "skip %s: %v\n", path, err)
		return
	}
	res := o.app.exec.Execute(ctx, req)
	if !res.OK() {
		fmt.Fprintf(o.out, "failed %s %s: %s\n", s.Action, path, res.Reason())
		return
	}
	fmt.Fprintf(o.out, "#%d %s %s -> %s (%s)\n",
		res.Record.ID, s.Action, path, dash(res.Record.Destination), s.RuleName)
}
