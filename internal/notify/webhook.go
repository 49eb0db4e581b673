package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"paperlens/internal/types"
)

// WebhookNotifier posts digests as JSON to an arbitrary HTTP endpoint.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier builds the webhook channel.
func NewWebhookNotifier(url string, httpClient *http.Client) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookNotifier{url: url, http: httpClient}
}

// Channel implements Notifier.
func (w *WebhookNotifier) Channel() string { return "webhook" }

type digestWebhookPayload struct {
	Type   string             `json:"type"`
	Count  int                `json:"count"`
	Papers []types.DigestItem `json:"papers"`
}

type statusWebhookPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendDigest implements Notifier.
func (w *WebhookNotifier) SendDigest(ctx context.Context, items []types.DigestItem) types.NotificationResult {
	return w.post(ctx, digestWebhookPayload{
		Type:   "arxiv_digest",
		Count:  len(items),
		Papers: items,
	})
}

// SendStatus implements Notifier.
func (w *WebhookNotifier) SendStatus(ctx context.Context, message string) types.NotificationResult {
	return w.post(ctx, statusWebhookPayload{
		Type:    "arxiv_status",
		Message: message,
	})
}

func (w *WebhookNotifier) post(ctx context.Context, payload any) types.NotificationResult {
	result := types.NotificationResult{Channel: w.Channel()}

	if w.url == "" {
		result.Message = "no webhook URL configured"
		return result
	}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Message = fmt.Sprintf("marshal payload: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		result.Message = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		result.Message = fmt.Sprintf("send webhook: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Message = fmt.Sprintf("webhook returned %s", resp.Status)
		return result
	}

	result.Success = true
	return result
}
