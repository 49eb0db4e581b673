// Package content extracts readable paper text for the deep analyzer.
// arXiv serves an HTML rendering for most recent papers; when that is
// missing the abstract page still yields usable text. PDFs are never
// parsed.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultBaseURL = "https://arxiv.org"
	// maxChars bounds extracted text; the analyzer applies its own
	// tighter prompt budget on top.
	maxChars  = 50000
	userAgent = "paperlens/1.0"
)

// Extractor fetches and extracts paper text. It is a best-effort
// collaborator: every failure path returns the empty string.
type Extractor struct {
	baseURL string
	http    *http.Client
}

// NewExtractor builds an Extractor. baseURL is overridable for tests.
func NewExtractor(baseURL string, httpClient *http.Client) *Extractor {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Extractor{baseURL: baseURL, http: httpClient}
}

// Extract returns plain text for the paper, trying the HTML rendering
// first and the abstract page second. location (the PDF URL) is accepted
// for interface parity but text always comes from the HTML endpoints.
func (e *Extractor) Extract(ctx context.Context, location, paperID string) string {
	candidates := []string{
		fmt.Sprintf("%s/html/%s", e.baseURL, paperID),
		fmt.Sprintf("%s/abs/%s", e.baseURL, paperID),
	}

	for _, pageURL := range candidates {
		text, err := e.extractPage(ctx, pageURL)
		if err != nil {
			slog.Debug("content extraction attempt failed", "paper", paperID, "url", pageURL, "error", err)
			continue
		}
		if text != "" {
			slog.Info("extracted paper content", "paper", paperID, "chars", len(text))
			return text
		}
	}

	slog.Warn("no content extracted", "paper", paperID, "location", location)
	return ""
}

func (e *Extractor) extractPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	// The HTML rendering wraps the paper in <article>; the abstract page
	// keeps its text in the abstract block.
	for _, selector := range []string{"article", "blockquote.abstract", "body"} {
		if text := normalize(doc.Find(selector).First().Text()); text != "" {
			return truncate(text, maxChars), nil
		}
	}
	return "", nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
