// Package config loads paperlens settings: built-in defaults, overlaid by
// an optional YAML file, overlaid by environment variables for secrets and
// deployment knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default model assignments. The cheap model handles high-volume batch
// judgments; the strong model handles per-paper deep analysis.
const (
	DefaultMiniModel = "claude-3-5-haiku-latest"
	DefaultFullModel = "claude-sonnet-4-0"
)

// SearchConfig controls arXiv discovery.
type SearchConfig struct {
	// Topics are the queries sent to the arXiv API, one discovery pass each.
	Topics []string `yaml:"topics"`

	// Categories restricts results to papers carrying at least one of these
	// arXiv category codes. Empty means no restriction.
	Categories []string `yaml:"categories"`

	// TraceBackDays is how far back the discovery window starts.
	TraceBackDays int `yaml:"trace_back_days"`

	// WindowEndDays is how many days ago the window ends. Zero means "now".
	WindowEndDays int `yaml:"window_end_days"`
}

// SelectionConfig controls which scored papers get analyzed.
type SelectionConfig struct {
	ScoreThreshold int `yaml:"score_threshold"`
	MaxItems       int `yaml:"max_items"`
}

// ModelsConfig assigns a model per stage.
type ModelsConfig struct {
	Filter   string `yaml:"filter"`
	Scorer   string `yaml:"scorer"`
	Analyzer string `yaml:"analyzer"`
}

// JudgeConfig controls batch sizes for the filter and scorer stages.
type JudgeConfig struct {
	FilterBatchSize int `yaml:"filter_batch_size"`
	ScorerBatchSize int `yaml:"scorer_batch_size"`
}

// EmailConfig configures the Brevo email channel.
type EmailConfig struct {
	Sender     string   `yaml:"sender"`
	SenderName string   `yaml:"sender_name"`
	Recipients []string `yaml:"recipients"`
	BrevoKey   string   `yaml:"brevo_api_key"`
}

// NotifyConfig configures delivery channels. A channel with no
// configuration is simply not constructed.
type NotifyConfig struct {
	Email      EmailConfig `yaml:"email"`
	WebhookURL string      `yaml:"webhook_url"`
}

// Config is the full application configuration.
type Config struct {
	Search             SearchConfig    `yaml:"search"`
	AcceptanceCriteria string          `yaml:"acceptance_criteria"`
	Selection          SelectionConfig `yaml:"selection"`
	Models             ModelsConfig    `yaml:"models"`
	Judge              JudgeConfig     `yaml:"judge"`
	Notify             NotifyConfig    `yaml:"notify"`

	// AnthropicAPIKey authenticates reasoning calls. Usually supplied via
	// the ANTHROPIC_API_KEY environment variable rather than the file.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// TavilyAPIKey enables community-feedback search. Optional.
	TavilyAPIKey string `yaml:"tavily_api_key"`

	// HistoryPath is the sqlite run-history database. Empty disables
	// persistence and cross-run dedup.
	HistoryPath string `yaml:"history_path"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Search: SearchConfig{
			Topics:        []string{"machine learning"},
			TraceBackDays: 7,
		},
		AcceptanceCriteria: "Papers related to AI agents, LLM, or autonomous systems",
		Selection: SelectionConfig{
			ScoreThreshold: 50,
			MaxItems:       5,
		},
		Models: ModelsConfig{
			Filter:   DefaultMiniModel,
			Scorer:   DefaultMiniModel,
			Analyzer: DefaultFullModel,
		},
		Judge: JudgeConfig{
			FilterBatchSize: 10,
			ScorerBatchSize: 10,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty or the file does not exist), then
// environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; defaults plus env are enough.
		case err != nil:
			return Config{}, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing YAML: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.TavilyAPIKey, "TAVILY_API_KEY")
	setString(&cfg.Notify.Email.BrevoKey, "BREVO_API_KEY")
	setString(&cfg.Notify.Email.Sender, "EMAIL_SENDER")
	setString(&cfg.Notify.WebhookURL, "WEBHOOK_URL")
	setString(&cfg.AcceptanceCriteria, "ACCEPTANCE_CRITERIA")
	setString(&cfg.Models.Filter, "MODEL_MINI")
	setString(&cfg.Models.Scorer, "MODEL_MINI")
	setString(&cfg.Models.Analyzer, "MODEL_FULL")
	setString(&cfg.HistoryPath, "HISTORY_PATH")

	setInt(&cfg.Search.TraceBackDays, "TRACE_BACK_DAYS")
	setInt(&cfg.Selection.ScoreThreshold, "SCORE_THRESHOLD")
	setInt(&cfg.Selection.MaxItems, "MAX_ITEMS")

	if v := os.Getenv("SEARCH_TOPICS"); v != "" {
		cfg.Search.Topics = splitList(v)
	}
	if v := os.Getenv("EMAIL_ADDRESS_LIST"); v != "" {
		cfg.Notify.Email.Recipients = splitList(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if len(c.Search.Topics) == 0 {
		return fmt.Errorf("at least one search topic is required")
	}
	if c.Search.TraceBackDays <= 0 {
		return fmt.Errorf("trace_back_days must be positive, got %d", c.Search.TraceBackDays)
	}
	if c.Search.WindowEndDays < 0 {
		return fmt.Errorf("window_end_days must not be negative, got %d", c.Search.WindowEndDays)
	}
	if c.Search.WindowEndDays >= c.Search.TraceBackDays {
		return fmt.Errorf("window_end_days (%d) must be before trace_back_days (%d)",
			c.Search.WindowEndDays, c.Search.TraceBackDays)
	}
	if c.Selection.ScoreThreshold < 1 || c.Selection.ScoreThreshold > 100 {
		return fmt.Errorf("score_threshold must be within [1, 100], got %d", c.Selection.ScoreThreshold)
	}
	if c.Selection.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive, got %d", c.Selection.MaxItems)
	}
	if c.Judge.FilterBatchSize <= 0 || c.Judge.ScorerBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	return nil
}

// HasEmail reports whether the email channel is configured.
func (c Config) HasEmail() bool {
	return c.Notify.Email.BrevoKey != "" && len(c.Notify.Email.Recipients) > 0
}

// HasWebhook reports whether the webhook channel is configured.
func (c Config) HasWebhook() bool {
	return c.Notify.WebhookURL != ""
}
