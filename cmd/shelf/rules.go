package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/shelf/pkg/shelf/config"
	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/scanner"
	"github.com/jamesainslie/shelf/pkg/shelf/suggest"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active rules",
	Long: `List the built-in rules merged with the rules from the config file,
in evaluation order (highest priority first).`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

var rulesExplainCmd = &cobra.Command{
	Use:   "explain [file]",
	Short: "Show which rules match a file",
	Long:  `Evaluate every rule against one file and show the resulting destinations.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesExplain,
}

var explainLocal bool

func init() {
	rulesExplainCmd.Flags().BoolVar(&explainLocal, "local", false, "resolve destinations in local mode")

	rulesCmd.AddCommand(rulesExplainCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	set, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	return writeRules(cmd.OutOrStdout(), set.Rules(), getOutput())
}

func writeRules(w io.Writer, rs []rules.Rule, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIORITY\tENABLED\tACTION\tTARGET")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\t%s\n",
			r.Name, r.Priority, r.IsEnabled(), actionName(r.Action), dash(r.Action.Template()))
	}
	return tw.Flush()
}

func actionName(a rules.Action) string {
	switch {
	case a.Delete:
		return string(suggest.ActionDelete)
	case a.Archive != "":
		return string(suggest.ActionArchive)
	case a.Suggest != "":
		return "suggest"
	default:
		return string(suggest.ActionMove)
	}
}

func runRulesExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := scanner.Describe(args[0], true)
	if err != nil {
		return err
	}
	return explain(cmd.OutOrStdout(), cfg, &f, explainLocal)
}

// explain prints every rule matching f with its confidence and destination.
func explain(w io.Writer, cfg *config.Config, f *types.FileDescriptor, local bool) error {
	set, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	mode := cfg.Mode(f.Dir())
	if local {
		mode = destination.LocalMode(f.Dir())
	}
	matcher := rules.NewMatcher(types.SystemClock{})
	builder := suggest.NewBuilder(matcher, set, destination.NewResolver(cfg.Aliases()), mode)

	fmt.Fprintf(w, "%s (%s, %s)\n", f.Path, f.Category, f.HumanSize())
	matches := matcher.MatchAll(f, set)
	if len(matches) == 0 {
		fmt.Fprintln(w, "no rule matches")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tCONF\tACTION\tDESTINATION")
	for _, m := range matches {
		action, dest := actionName(m.Rule.Action), ""
		if s, ok := builder.FromMatch(f, m); ok {
			action, dest = string(s.Action), s.Destination
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.Rule.Name, strconv.Itoa(int(m.Confidence*100+0.5))+"%", action, dash(dest))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
