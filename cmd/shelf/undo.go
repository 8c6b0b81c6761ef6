package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/shelf/pkg/shelf/output"
	"github.com/jamesainslie/shelf/pkg/shelf/undo"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo recorded operations",
	Long: `Reverse operations from the operation log.

Without flags the most recent operation is undone. Deleted files can only
be restored when they were sent to the trash and are still there.

Examples:
  shelf undo                  # Undo the most recent operation
  shelf undo --last 5         # Undo the five most recent operations
  shelf undo --id 12 --id 14  # Undo specific operations
  shelf undo --all-recent     # Undo the most recent organize run`,
	Args: cobra.NoArgs,
	RunE: runUndo,
}

// undoOptions selects which operations to undo.
type undoOptions struct {
	IDs       []int64
	Last      int
	AllRecent bool
}

var undoFlags undoOptions

func init() {
	undoCmd.Flags().Int64SliceVar(&undoFlags.IDs, "id", nil, "operation id to undo (repeatable)")
	undoCmd.Flags().IntVarP(&undoFlags.Last, "last", "n", 1, "undo the N most recent operations")
	undoCmd.Flags().BoolVar(&undoFlags.AllRecent, "all-recent", false, "undo every operation of the most recent batch")

	undoCmd.MarkFlagsMutuallyExclusive("id", "last", "all-recent")
	rootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return undoOperations(cmd.Context(), a.undo, undoFlags, cmd)
}

// undoOperations undoes the selection in opts and renders the outcomes.
func undoOperations(ctx context.Context, engine *undo.Engine, opts undoOptions, cmd *cobra.Command) error {
	var (
		outcomes []undo.Outcome
		err      error
	)
	switch {
	case len(opts.IDs) > 0:
		outcomes = engine.UndoMultiple(ctx, opts.IDs)
	case opts.AllRecent:
		outcomes, err = engine.UndoBatch(ctx, "")
	default:
		outcomes, err = engine.UndoRecent(ctx, max(opts.Last, 1))
	}
	if err != nil {
		return err
	}

	if err := render(cmd, output.Undo(outcomes, time.Now())); err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d operations could not be undone", failed, len(outcomes))
	}
	return nil
}
