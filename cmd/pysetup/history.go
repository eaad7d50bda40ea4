package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent setup runs",
	RunE:  showHistory,
}

var historyCount int

func init() {
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 10, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func showHistory(cmd *cobra.Command, args []string) error {
	history := openHistory()
	if history == nil {
		return fmt.Errorf("cannot resolve the user config directory")
	}

	entries, err := history.Recent(historyCount)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No setups yet.")
		return nil
	}

	for _, e := range entries {
		icon := "[OK]"
		if !e.Success {
			icon = "[FAIL]"
		}
		ts := e.Timestamp
		if len(ts) > 19 {
			ts = ts[:19]
		}
		fmt.Printf("%s %s %s (%s) %s (%.1fs)\n", icon, ts, e.Template, e.Backend, e.Path, e.Duration)
	}
	return nil
}
