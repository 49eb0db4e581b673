package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paperlens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Effective Configuration ==="))

		fmt.Printf("Topics:              %s\n", strings.Join(cfg.Search.Topics, ", "))
		if len(cfg.Search.Categories) > 0 {
			fmt.Printf("Categories:          %s\n", strings.Join(cfg.Search.Categories, ", "))
		}
		fmt.Printf("Window:              %d to %d days ago\n", cfg.Search.TraceBackDays, cfg.Search.WindowEndDays)
		fmt.Printf("Acceptance criteria: %s\n", cfg.AcceptanceCriteria)
		fmt.Printf("Score threshold:     %d\n", cfg.Selection.ScoreThreshold)
		fmt.Printf("Max items:           %d\n", cfg.Selection.MaxItems)
		fmt.Printf("Batch sizes:         filter %d, scorer %d\n", cfg.Judge.FilterBatchSize, cfg.Judge.ScorerBatchSize)
		fmt.Printf("Models:              filter %s, scorer %s, analyzer %s\n",
			cfg.Models.Filter, cfg.Models.Scorer, cfg.Models.Analyzer)

		fmt.Printf("Reasoning API key:   %s\n", redact(cfg.AnthropicAPIKey))
		fmt.Printf("Tavily API key:      %s\n", redact(cfg.TavilyAPIKey))

		fmt.Printf("Email channel:       %s\n", configured(cfg.HasEmail()))
		if cfg.HasEmail() {
			fmt.Printf("  Sender:            %s\n", cfg.Notify.Email.Sender)
			fmt.Printf("  Recipients:        %d\n", len(cfg.Notify.Email.Recipients))
		}
		fmt.Printf("Webhook channel:     %s\n", configured(cfg.HasWebhook()))

		if cfg.HistoryPath != "" {
			fmt.Printf("History database:    %s\n", cfg.HistoryPath)
		} else {
			fmt.Printf("History database:    disabled\n")
		}
		return nil
	},
}

func redact(key string) string {
	if key == "" {
		return color.New(color.FgHiBlack).Sprint("not set")
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func configured(ok bool) string {
	if ok {
		return color.New(color.FgGreen).Sprint("configured")
	}
	return color.New(color.FgHiBlack).Sprint("not configured")
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
