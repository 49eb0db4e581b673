package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paperlens/internal/ai"
	"paperlens/internal/analyze"
	"paperlens/internal/arxiv"
	"paperlens/internal/config"
	"paperlens/internal/content"
	"paperlens/internal/feedback"
	"paperlens/internal/judge"
	"paperlens/internal/notify"
	"paperlens/internal/pipeline"
	"paperlens/internal/storage"
	"paperlens/internal/types"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one triage pass and deliver the digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return runPipeline(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of sending notifications")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(ctx context.Context, cfg config.Config) error {
	if cfg.AnthropicAPIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if cfg.TavilyAPIKey == "" {
		color.Yellow("Warning: TAVILY_API_KEY not set, community feedback search disabled")
	}
	if !dryRun && !cfg.HasEmail() && !cfg.HasWebhook() {
		color.Yellow("Warning: no notification channels configured")
	}

	llm, err := ai.NewClient(ai.ClientConfig{APIKey: cfg.AnthropicAPIKey})
	if err != nil {
		return fmt.Errorf("creating reasoning client: %w", err)
	}

	var store *storage.Store
	if cfg.HistoryPath != "" {
		store, err = storage.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer store.Close()
	}

	var notifier pipeline.NotificationSender
	if dryRun {
		notifier = &consoleNotifier{}
	} else {
		var channels []notify.Notifier
		if cfg.HasEmail() {
			channels = append(channels, notify.NewEmailNotifier(
				cfg.Notify.Email.BrevoKey, "", cfg.Notify.Email.Sender,
				cfg.Notify.Email.SenderName, cfg.Notify.Email.Recipients, nil))
		}
		if cfg.HasWebhook() {
			channels = append(channels, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, nil))
		}
		notifier = notify.NewService(channels...)
	}

	settings := pipeline.Settings{
		Topics:             cfg.Search.Topics,
		Categories:         cfg.Search.Categories,
		TraceBackDays:      cfg.Search.TraceBackDays,
		WindowEndDays:      cfg.Search.WindowEndDays,
		AcceptanceCriteria: cfg.AcceptanceCriteria,
		ScoreThreshold:     cfg.Selection.ScoreThreshold,
		MaxItems:           cfg.Selection.MaxItems,
	}

	var history pipeline.HistoryStore
	if store != nil {
		history = store
	}

	p := pipeline.New(settings,
		arxiv.NewFetcher(arxiv.NewClient("", nil)),
		judge.NewFilter(llm, cfg.Models.Filter, cfg.Judge.FilterBatchSize),
		judge.NewScorer(llm, cfg.Models.Scorer, cfg.Judge.ScorerBatchSize),
		analyze.NewAnalyzer(llm, cfg.Models.Analyzer),
		feedback.NewSearcher(cfg.TavilyAPIKey, "", nil),
		content.NewExtractor("", nil),
		notifier,
		history)

	items := p.Run(ctx)

	if len(items) == 0 {
		color.Yellow("No papers delivered this run")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\nDelivered %s papers:\n", green(fmt.Sprintf("%d", len(items))))
	for _, item := range items {
		fmt.Printf("  [%s] %s\n", green(fmt.Sprintf("%d", item.Rating)), item.Title)
	}
	return nil
}

// consoleNotifier prints instead of delivering. Used by --dry-run.
type consoleNotifier struct{}

func (c *consoleNotifier) SendDigest(_ context.Context, items []types.DigestItem) []types.NotificationResult {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("=== Digest (dry run) ==="))
	for _, item := range items {
		fmt.Printf("\n[%d] %s\n", item.Rating, item.Title)
		fmt.Printf("    %s | %s\n", item.PublishDate, item.ArxivURL)
		fmt.Printf("    %s\n", item.Summary)
		if item.RatingJustification != "" {
			fmt.Printf("    Rating: %s\n", item.RatingJustification)
		}
	}
	return []types.NotificationResult{{Success: true, Channel: "console"}}
}

func (c *consoleNotifier) SendStatus(_ context.Context, message string) []types.NotificationResult {
	fmt.Printf("\n%s\n", message)
	return []types.NotificationResult{{Success: true, Channel: "console"}}
}
