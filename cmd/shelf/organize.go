package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/executor"
	"github.com/jamesainslie/shelf/pkg/shelf/output"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/scanner"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/tuner"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var organizeCmd = &cobra.Command{
	Use:   "organize [path]",
	Short: "Suggest and apply file organization",
	Long: `Scan a directory, match every file against the rules and suggest where
it belongs. Without --auto or --interactive nothing is changed.

With --auto, suggestions that do not need confirmation are applied.
With --interactive, each suggestion is confirmed on the terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrganize,
}

// organizeOptions are the organize flags merged over the config defaults.
type organizeOptions struct {
	DryRun        bool
	Auto          bool
	Interactive   bool
	MinConfidence float64
	Local         bool
	Trash         bool
	Parallel      int
	StopOnError   bool
	Recursive     bool
	Categories    []string
	Actions       []string
}

func init() {
	addOrganizeFlags(organizeCmd.Flags())
	organizeCmd.MarkFlagsMutuallyExclusive("auto", "interactive")
	rootCmd.AddCommand(organizeCmd)
}

func addOrganizeFlags(f *pflag.FlagSet) {
	f.BoolP("dry-run", "d", false, "only show suggestions")
	f.BoolP("auto", "a", false, "apply suggestions that need no confirmation")
	f.BoolP("interactive", "i", false, "confirm each suggestion")
	f.Float64P("confidence", "c", config.DefaultMinConfidence, "minimum confidence (0-1)")
	f.Bool("local", false, "organize into folders under the scanned directory")
	f.Bool("no-trash", false, "delete permanently instead of using the trash")
	f.IntP("parallel", "p", config.DefaultParallel, "operations run at once (0 = auto)")
	f.Bool("stop-on-error", false, "stop at the first failed operation")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.String("category", "", "only these categories (comma-separated)")
	f.String("action", "", "only these actions (comma-separated: move,copy,delete,archive)")
}

// organizeOptionsFrom merges flags the user set over the config defaults.
func organizeOptionsFrom(cmd *cobra.Command, cfg *config.Config) (organizeOptions, error) {
	f := cmd.Flags()
	opts := organizeOptions{
		MinConfidence: cfg.Organize.MinConfidence,
		Local:         strings.EqualFold(cfg.Organize.Mode, "local"),
		Trash:         cfg.Organize.Trash,
		Parallel:      cfg.Organize.Parallel,
		StopOnError:   cfg.Organize.StopOnError,
		Recursive:     cfg.Organize.Recursive,
	}

	var err error
	get := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	opts.DryRun, _ = f.GetBool("dry-run")
	opts.Auto, _ = f.GetBool("auto")
	opts.Interactive, _ = f.GetBool("interactive")
	get("confidence", func() (e error) { opts.MinConfidence, e = f.GetFloat64("confidence"); return })
	get("local", func() (e error) { opts.Local, e = f.GetBool("local"); return })
	get("no-trash", func() error {
		noTrash, e := f.GetBool("no-trash")
		opts.Trash = !noTrash
		return e
	})
	get("parallel", func() (e error) { opts.Parallel, e = f.GetInt("parallel"); return })
	get("stop-on-error", func() (e error) { opts.StopOnError, e = f.GetBool("stop-on-error"); return })
	get("recursive", func() (e error) { opts.Recursive, e = f.GetBool("recursive"); return })
	get("category", func() error {
		v, e := f.GetString("category")
		opts.Categories = parseCommaSeparated(v)
		return e
	})
	get("action", func() error {
		v, e := f.GetString("action")
		opts.Actions = parseCommaSeparated(v)
		return e
	})
	if err != nil {
		return opts, err
	}

	if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return opts, fmt.Errorf("%w: confidence must be between 0 and 1, got %v",
			types.ErrValidation, opts.MinConfidence)
	}
	return opts, nil
}

func runOrganize(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := organizeOptionsFrom(cmd, a.cfg)
	if err != nil {
		return err
	}
	return organize(cmd.Context(), a, root, opts, cmd.InOrStdin(), cmd)
}

// organize runs scan, suggest, approve and execute for root.
func organize(ctx context.Context, a *app, root string, opts organizeOptions, in io.Reader, cmd *cobra.Command) error {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	workers := tuner.Auto().WithOverride(opts.Parallel)
	printVerbose("using %d scan workers, %d executors", workers.ScanWorkers, workers.ExecWorkers)

	ss, warnings, err := plan(ctx, a.cfg, abs, opts, workers.ScanWorkers)
	if err != nil {
		return err
	}

	if opts.DryRun || (!opts.Auto && !opts.Interactive) {
		report := output.Suggestions(abs, ss, true)
		report.Warnings = warnings
		report.Elapsed = time.Since(start)
		return render(cmd, report)
	}

	var approved []suggest.Suggestion
	if opts.Interactive {
		approved, err = confirm(ss, in, cmd.OutOrStdout())
		if err != nil {
			return err
		}
	} else {
		approved = suggest.Filter(ss, suggest.WithoutConfirmation())
		if skipped := len(ss) - len(approved); skipped > 0 {
			warnings = append(warnings,
				fmt.Sprintf("%d suggestion(s) need confirmation; run with --interactive to review them", skipped))
		}
	}

	reqs := make([]executor.Request, 0, len(approved))
	for _, s := range approved {
		req, err := executor.FromSuggestion(s, opts.Trash)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", s.File.Path, err))
			continue
		}
		reqs = append(reqs, req)
	}

	batch, err := a.exec.ExecuteMany(ctx, reqs, executor.BatchOptions{
		Parallel:    workers.ExecWorkers,
		StopOnError: opts.StopOnError,
	})
	if err != nil {
		return err
	}

	report := output.Results(abs, batch)
	report.Warnings = warnings
	report.Elapsed = time.Since(start)
	if err := render(cmd, report); err != nil {
		return err
	}

	if failed := len(batch.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, len(batch.Results))
	}
	return nil
}

// plan scans root and returns the filtered suggestions plus scan warnings.
func plan(ctx context.Context, cfg *config.Config, root string, opts organizeOptions, scanWorkers int) ([]suggest.Suggestion, []string, error) {
	res, err := scanner.Scan(ctx, scanner.Options{
		Root:      root,
		Exclude:   cfg.Exclude,
		Recursive: opts.Recursive,
		Workers:   scanWorkers,
		Sniff:     true,
	})
	if err != nil {
		return nil, nil, err
	}
	printVerbose("scanned %d files in %s", len(res.Files), res.Elapsed)

	var warnings []string
	for _, e := range res.Errors {
		warnings = append(warnings, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}

	set, err := cfg.RuleSet()
	if err != nil {
		return nil, nil, err
	}
	mode := cfg.Mode(root)
	if opts.Local {
		mode = destination.LocalMode(root)
	}
	builder := suggest.NewBuilder(
		rules.NewMatcher(types.SystemClock{}),
		set,
		destination.NewResolver(cfg.Aliases()),
		mode,
	)

	files := make([]*types.FileDescriptor, len(res.Files))
	for i := range res.Files {
		files[i] = &res.Files[i]
	}

	filters := []suggest.FilterOption{suggest.WithMinConfidence(opts.MinConfidence)}
	if len(opts.Categories) > 0 {
		cats := make([]types.Category, 0, len(opts.Categories))
		for _, c := range opts.Categories {
			cat, err := types.ParseCategory(c)
			if err != nil {
				return nil, nil, err
			}
			cats = append(cats, cat)
		}
		filters = append(filters, suggest.WithCategories(cats...))
	}
	if len(opts.Actions) > 0 {
		actions := make([]suggest.Action, 0, len(opts.Actions))
		for _, name := range opts.Actions {
			act, err := parseAction(name)
			if err != nil {
				return nil, nil, err
			}
			actions = append(actions, act)
		}
		filters = append(filters, suggest.WithActions(actions...))
	}

	return suggest.Filter(builder.GenerateSuggestions(files), filters...), warnings, nil
}

func parseAction(s string) (suggest.Action, error) {
	switch a := suggest.Action(strings.ToLower(s)); a {
	case suggest.ActionMove, suggest.ActionCopy, suggest.ActionDelete, suggest.ActionArchive:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", types.ErrValidation, s)
	}
}

// confirm asks about each suggestion on out and reads answers from in.
// "a" approves the rest, "q" or end of input stops asking.
func confirm(ss []suggest.Suggestion, in io.Reader, out io.Writer) ([]suggest.Suggestion, error) {
	reader := bufio.NewReader(in)
	var approved []suggest.Suggestion

	for i, s := range ss {
		target := s.Destination
		if target == "" {
			target = "(removed)"
		}
		fmt.Fprintf(out, "[%d/%d] %s %s -> %s (%s, %.0f%%) [y/N/a/q] ",
			i+1, len(ss), s.Action, s.File.Path, target, s.RuleName, s.Confidence*100)

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read answer: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))

		switch answer {
		case "y", "yes":
			approved = append(approved, s)
		case "a", "all":
			return append(approved, ss[i:]...), nil
		case "q", "quit":
			return approved, nil
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return approved, nil
		}
	}
	return approved, nil
}
