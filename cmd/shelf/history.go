package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/shelf/pkg/shelf/oplog"
	"github.com/jamesainslie/shelf/pkg/shelf/output"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/trash"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the operation log, newest first.

Every move, copy, rename, archive and delete performed by shelf is
recorded with the rule that triggered it. Use the ids with 'shelf undo --id'.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old operation records",
	Long: `Delete operation records older than the given age.

Pruned operations can no longer be undone.`,
	Example: `  shelf history clean --older-than "90 days"
  shelf history clean --older-than "1 year"`,
	Args: cobra.NoArgs,
	RunE: runHistoryClean,
}

var (
	historyLimit     int
	historyBatch     string
	historyOlderThan string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 = all)")
	historyCmd.Flags().StringVar(&historyBatch, "batch", "", "only operations of this batch id")

	historyCleanCmd.Flags().StringVar(&historyOlderThan, "older-than", "90 days", "age of the records to delete, e.g. \"6 months\"")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var recs []oplog.Record
	if historyBatch != "" {
		recs, err = a.store.ListBatch(cmd.Context(), historyBatch)
	} else {
		recs, err = a.store.List(cmd.Context(), historyLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(recs) == 0 && getOutput() == "pretty" {
		printInfo(cmd, "No operations recorded.")
		printInfo(cmd, "Run 'shelf organize --auto [path]' to organize files.")
		return nil
	}
	return render(cmd, output.History(recs, time.Now()))
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid operation id %q", types.ErrValidation, args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	report := output.History([]oplog.Record{*rec}, time.Now())
	report.Warnings = deleteNotes(a.trash, rec)
	return render(cmd, report)
}

// deleteNotes describes whether a delete record can still be undone.
func deleteNotes(tr *trash.Trash, rec *oplog.Record) []string {
	if rec.Type != oplog.OpDelete || rec.Undone() {
		return nil
	}
	if rec.Destination == "" {
		return []string{"deleted permanently; cannot be undone"}
	}
	if ok, err := tr.Exists(rec.Destination); err == nil && !ok {
		return []string{fmt.Sprintf("%s is no longer in the trash; cannot be undone", rec.Destination)}
	}
	if orig, err := tr.OriginalPath(rec.Destination); err == nil && orig != rec.Source {
		return []string{fmt.Sprintf("trash entry records original path %s", orig)}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	cutoff, err := pruneCutoff(historyOlderThan, time.Now())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Prune(cmd.Context(), cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	printInfo(cmd, "Removed %d operation(s) recorded before %s.", n, cutoff.Format(time.DateOnly))
	return nil
}

// pruneCutoff turns an age such as "90 days" into the instant before which
// records are deleted.
func pruneCutoff(age string, now time.Time) (time.Time, error) {
	older, err := rules.ParseAge("> " + strings.TrimSpace(age))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --older-than: %w", types.ErrValidation, err)
	}
	return now.Add(-time.Duration(older.Days) * 24 * time.Hour), nil
}
