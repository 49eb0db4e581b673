package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"paperlens/internal/types"
)

// DefaultBrevoEndpoint is the Brevo transactional email API.
const DefaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// EmailNotifier sends digests through the Brevo transactional email API.
type EmailNotifier struct {
	apiKey     string
	endpoint   string
	sender     string
	senderName string
	recipients []string
	http       *http.Client
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier builds the email channel.
func NewEmailNotifier(apiKey, endpoint, sender, senderName string, recipients []string, httpClient *http.Client) *EmailNotifier {
	if endpoint == "" {
		endpoint = DefaultBrevoEndpoint
	}
	if senderName == "" {
		senderName = "Paperlens"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &EmailNotifier{
		apiKey:     apiKey,
		endpoint:   endpoint,
		sender:     sender,
		senderName: senderName,
		recipients: recipients,
		http:       httpClient,
	}
}

// Channel implements Notifier.
func (e *EmailNotifier) Channel() string { return "email" }

type brevoRecipient struct {
	Email string `json:"email"`
}

type brevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type brevoPayload struct {
	Sender      brevoSender      `json:"sender"`
	To          []brevoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLContent string           `json:"htmlContent"`
}

// SendDigest renders the digest as HTML and posts it to Brevo.
func (e *EmailNotifier) SendDigest(ctx context.Context, items []types.DigestItem) types.NotificationResult {
	html, err := renderDigestHTML(items)
	if err != nil {
		return types.NotificationResult{Channel: e.Channel(), Message: fmt.Sprintf("render digest: %v", err)}
	}
	subject := fmt.Sprintf("Arxiv Digest: %d Papers", len(items))
	return e.post(ctx, subject, html)
}

// SendStatus posts a plain status message.
func (e *EmailNotifier) SendStatus(ctx context.Context, message string) types.NotificationResult {
	html, err := renderStatusHTML(message)
	if err != nil {
		return types.NotificationResult{Channel: e.Channel(), Message: fmt.Sprintf("render status: %v", err)}
	}
	return e.post(ctx, "Arxiv Digest Status", html)
}

func (e *EmailNotifier) post(ctx context.Context, subject, html string) types.NotificationResult {
	result := types.NotificationResult{Channel: e.Channel()}

	if len(e.recipients) == 0 {
		result.Message = "no recipients configured"
		return result
	}
	if e.apiKey == "" {
		result.Message = "no API key configured"
		return result
	}

	to := make([]brevoRecipient, len(e.recipients))
	for i, r := range e.recipients {
		to[i] = brevoRecipient{Email: r}
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      brevoSender{Email: e.sender, Name: e.senderName},
		To:          to,
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		result.Message = fmt.Sprintf("marshal payload: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		result.Message = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		result.Message = fmt.Sprintf("send email: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Message = fmt.Sprintf("brevo returned %s", resp.Status)
		return result
	}

	result.Success = true
	return result
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"ratingColor": ratingColor,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; background: #f5f5f5;">
  <h1 style="color: #1a1a1a; border-bottom: 2px solid #0066cc; padding-bottom: 10px;">Arxiv Paper Digest</h1>
  <p style="color: #666;">Found {{len .}} relevant papers for you.</p>
  {{range .}}
  <div style="margin-bottom: 30px; padding: 20px; border: 1px solid #e0e0e0; border-radius: 8px;">
    <h2 style="margin-top: 0; color: #1a1a1a;"><a href="{{.ArxivURL}}" style="color: #0066cc; text-decoration: none;">{{.Title}}</a></h2>
    <p style="color: #666; font-size: 14px;"><strong>Authors:</strong> {{.Authors}}</p>
    <p style="color: #666; font-size: 14px;"><strong>Published:</strong> {{.PublishDate}}</p>
    <p style="color: #666; font-size: 14px;"><strong>Rating:</strong>
      <span style="background: #{{ratingColor .Rating}}; color: white; padding: 2px 8px; border-radius: 4px;">{{.Rating}}/100</span>
    </p>
    <h3 style="color: #333; margin-bottom: 8px;">Summary</h3>
    <p style="color: #444;">{{.Summary}}</p>
    <h3 style="color: #333; margin-bottom: 8px;">Rating Justification</h3>
    <p style="color: #444;">{{.RatingJustification}}</p>
    <h3 style="color: #333; margin-bottom: 8px;">Community Reputation</h3>
    <p style="color: #444;">{{.CommunityReputation}}</p>
  </div>
  {{end}}
  <footer style="margin-top: 40px; padding-top: 20px; border-top: 1px solid #e0e0e0; color: #999; font-size: 12px; text-align: center;">Generated by Paperlens</footer>
</body>
</html>`))

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #1a1a1a;">Arxiv Digest Status</h1>
  <pre style="color: #444; white-space: pre-wrap;">{{.}}</pre>
</body>
</html>`))

// ratingColor mirrors the digest badge bands: green at 70+, amber at 50+,
// red below.
func ratingColor(rating int) string {
	switch {
	case rating >= 70:
		return "2ecc71"
	case rating >= 50:
		return "f39c12"
	default:
		return "e74c3c"
	}
}

func renderDigestHTML(items []types.DigestItem) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, items); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderStatusHTML(message string) (string, error) {
	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, message); err != nil {
		return "", err
	}
	return buf.String(), nil
}
