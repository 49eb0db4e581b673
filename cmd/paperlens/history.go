package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paperlens/internal/config"
	"paperlens/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent triage runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.HistoryPath == "" {
			return fmt.Errorf("history is disabled, set history_path in the config")
		}

		store, err := storage.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Recent Runs ==="))

		if len(runs) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("  %s\n", gray("No runs recorded"))
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		for _, run := range runs {
			marker := green("●")
			if run.Delivered == 0 {
				marker = yellow("○")
			}
			fmt.Printf("%s %s  %s\n", marker, run.StartedAt.Format("2006-01-02 15:04"), run.ID)
			fmt.Printf("    discovered %d, relevant %d, selected %d, delivered %d\n",
				run.Discovered, run.Relevant, run.Selected, run.Delivered)
			if run.FilterFailed > 0 || run.ScorerFailed > 0 {
				fmt.Printf("    %s filter %d/%d failed, scorer %d/%d failed\n",
					yellow("!"), run.FilterFailed, run.FilterTotal,
					run.ScorerFailed, run.ScorerTotal)
			}
			if run.Status != "" {
				// Status may be multi-line; show the reason line only.
				reason := run.Status
				if idx := strings.IndexByte(reason, '\n'); idx >= 0 {
					reason = reason[:idx]
				}
				fmt.Printf("    %s\n", reason)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
