package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/scriptrun/internal/journal"
)

var (
	flagHistoryJournal string
	flagHistoryLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the run journal",
	Long:  "Lists recorded runs, newest first, with the outcome of every script each run handled.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&flagHistoryJournal, "journal", defaultJournalPath, "run journal database path")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(flagHistoryJournal); os.IsNotExist(err) {
		return outputError("history", fmt.Errorf("journal not found: %s (run 'scriptrun run' first)", flagHistoryJournal))
	}
	store, err := journal.Open(flagHistoryJournal)
	if err != nil {
		return outputError("history", err)
	}
	defer store.Close()

	runs, err := loadHistory(cmd.Context(), store, flagHistoryLimit)
	if err != nil {
		return outputError("history", err)
	}
	return outputResult(CLIResult{Command: "history", Results: runs})
}

func loadHistory(ctx context.Context, store *journal.Store, limit int) ([]CLIRun, error) {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := []CLIRun{}
	for _, r := range runs {
		cr := CLIRun{
			ID:        r.ID,
			Execution: r.Execution,
			StartedAt: r.StartedAt.Format(time.RFC3339),
			Status:    r.Status,
			Error:     r.Error,
		}
		if r.FinishedAt != nil {
			cr.FinishedAt = r.FinishedAt.Format(time.RFC3339)
		}
		scripts, err := store.ScriptRuns(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range scripts {
			cr.Scripts = append(cr.Scripts, CLIScriptRun{
				Seq:         s.Seq,
				Source:      s.Source,
				Key:         s.EngineKey,
				Disposition: s.Disposition,
				Reason:      s.Reason,
				DurationMS:  s.Duration.Milliseconds(),
			})
		}
		out = append(out, cr)
	}
	return out, nil
}
