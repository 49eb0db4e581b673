// Package ai wraps the Anthropic API behind a small reasoning-service
// capability that the judgment stages depend on. The wrapper owns retry,
// timeout, rate limiting, and circuit breaking so callers only see a
// prompt-in/text-out surface.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Completer is the reasoning-service capability consumed by the pipeline
// stages. Implementations must be safe for concurrent use. Passing the
// capability explicitly (rather than a package-level client) keeps every
// stage testable with in-memory doubles.
type Completer interface {
	// Complete sends one system+user exchange to the given model and
	// returns the assistant's text.
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// ClientConfig holds construction options for Client.
type ClientConfig struct {
	APIKey    string      // falls back to ANTHROPIC_API_KEY
	MaxTokens int         // per-response token cap (default 4096)
	Retry     RetryConfig // retry/backoff/breaker settings
	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64
}

// Client is the production Completer backed by the Anthropic API.
type Client struct {
	client    *anthropic.Client
	maxTokens int64
	retry     RetryConfig
	breaker   *circuitBreaker
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
}

var _ Completer = (*Client)(nil)

// NewClient creates a Client, reading the API key from the environment
// when the config does not provide one.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var breaker *circuitBreaker
	if retry.CircuitBreakerEnabled {
		breaker = newCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		client:    &client,
		maxTokens: int64(maxTokens),
		retry:     retry,
		breaker:   breaker,
		sem:       sem,
		limiter:   limiter,
	}, nil
}

// Complete implements Completer. Transport errors after all retries are
// returned to the caller; the judgment stages convert them to fallback
// verdicts rather than propagating.
func (c *Client) Complete(ctx context.Context, model, system, user string) (string, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("acquiring completion slot: %w", err)
		}
		defer c.sem.Release(1)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()

	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, "completion", func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	slog.Debug("completion finished",
		"model", model,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"duration", time.Since(start))

	return text, nil
}
