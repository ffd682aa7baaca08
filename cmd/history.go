package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stream2media/internal/history"
	"stream2media/internal/logger"
	"stream2media/internal/media"
	"stream2media/internal/ui"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse processed episodes, retry or forget them",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 50, "Show at most this many entries (0 for all)")
}

func historyRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	lg := openLedger(logger.From(ctx))
	if lg == nil {
		return fmt.Errorf("history is disabled")
	}

	entries, err := lg.List(ctx, flagHistoryLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if flagJSON {
		return writeJSON(os.Stdout, entries)
	}
	if len(entries) == 0 {
		fmt.Println("No history entries found.")
		return nil
	}

	items := history.FormatForDisplay(entries)
	idx, err := ui.Select("History", items)
	if err != nil {
		return err
	}
	selected := entries[idx]

	action, err := ui.Select(selected.Title+" - "+selected.Label, []string{"Fetch again", "Forget"})
	if err != nil {
		return err
	}
	if action == 1 {
		return lg.Remove(ctx, selected.URL)
	}

	o, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	ep := media.NewEpisode(selected.DubGroup, selected.DubGroup, selected.Label, selected.URL, selected.Provider)
	return o.ProcessEpisode(ctx, selected.Title, ep)
}
