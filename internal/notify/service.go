// Package notify delivers digests and status reports through configured
// channels. The pipeline only sees per-channel outcomes for logging; a
// failed channel never affects pipeline state.
package notify

import (
	"context"
	"log/slog"

	"paperlens/internal/types"
)

// Notifier is one delivery channel.
type Notifier interface {
	Channel() string
	SendDigest(ctx context.Context, items []types.DigestItem) types.NotificationResult
	SendStatus(ctx context.Context, message string) types.NotificationResult
}

// Service fans out to every configured channel.
type Service struct {
	notifiers []Notifier
}

// NewService builds a Service over the configured channels. An empty set
// is valid; sends then only produce a warning.
func NewService(notifiers ...Notifier) *Service {
	return &Service{notifiers: notifiers}
}

// SendDigest delivers digest items on every channel.
func (s *Service) SendDigest(ctx context.Context, items []types.DigestItem) []types.NotificationResult {
	return s.send("digest", func(n Notifier) types.NotificationResult {
		return n.SendDigest(ctx, items)
	})
}

// SendStatus delivers a plain status message on every channel.
func (s *Service) SendStatus(ctx context.Context, message string) []types.NotificationResult {
	return s.send("status", func(n Notifier) types.NotificationResult {
		return n.SendStatus(ctx, message)
	})
}

func (s *Service) send(kind string, deliver func(Notifier) types.NotificationResult) []types.NotificationResult {
	if len(s.notifiers) == 0 {
		slog.Warn("no notification channels configured", "kind", kind)
		return nil
	}

	results := make([]types.NotificationResult, 0, len(s.notifiers))
	for _, n := range s.notifiers {
		result := deliver(n)
		results = append(results, result)
		if result.Success {
			slog.Info("notification sent", "kind", kind, "channel", result.Channel)
		} else {
			slog.Error("notification failed", "kind", kind, "channel", result.Channel, "message", result.Message)
		}
	}
	return results
}
