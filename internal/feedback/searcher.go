// Package feedback gathers community reception of a paper through a
// Tavily-compatible web search API.
package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"paperlens/internal/types"
)

// DefaultEndpoint is the Tavily search API.
const DefaultEndpoint = "https://api.tavily.com/search"

const maxSources = 5

// Searcher queries the web for discussion of a paper. A Searcher with no
// API key degrades to a fixed "not configured" digest rather than failing.
type Searcher struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// NewSearcher builds a Searcher. An empty apiKey produces a disabled
// searcher whose results say so.
func NewSearcher(apiKey, endpoint string, httpClient *http.Client) *Searcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Searcher{apiKey: apiKey, endpoint: endpoint, http: httpClient}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search returns a feedback digest for the paper. Transport and decode
// failures degrade to an empty-feedback digest; the stage never errors.
func (s *Searcher) Search(ctx context.Context, title, paperID string) types.CommunityFeedback {
	if s.apiKey == "" {
		return types.CommunityFeedback{
			PaperID: paperID,
			Summary: "Web search not configured.",
		}
	}

	query := fmt.Sprintf("%s %s discussion review feedback", title, paperID)
	results := s.search(ctx, query)
	if len(results) == 0 {
		return types.CommunityFeedback{
			PaperID: paperID,
			Summary: "No community feedback found.",
		}
	}

	sources := make([]string, 0, maxSources)
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, r.URL)
		if len(sources) == maxSources {
			break
		}
	}

	return types.CommunityFeedback{
		PaperID: paperID,
		Summary: formatResults(results),
		Sources: sources,
	}
}

func (s *Searcher) search(ctx context.Context, query string) []searchResult {
	body, err := json.Marshal(searchRequest{
		APIKey:      s.apiKey,
		Query:       query,
		MaxResults:  maxSources,
		SearchDepth: "basic",
	})
	if err != nil {
		slog.Warn("feedback search payload marshal failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Warn("feedback search request build failed", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		slog.Warn("feedback search failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("feedback search returned error status", "status", resp.Status)
		return nil
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("feedback search response decode failed", "error", err)
		return nil
	}
	return payload.Results
}

// formatResults turns search hits into the bullet-list summary the
// analyzer embeds in its prompt. Result content is capped per source.
func formatResults(results []searchResult) string {
	var lines []string
	for _, r := range results {
		content := truncate(r.Content, 200)
		switch {
		case r.Title != "" && content != "":
			lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, content))
		case r.Title != "":
			lines = append(lines, fmt.Sprintf("- %s", r.Title))
		}
	}
	if len(lines) == 0 {
		return "Limited community discussion found."
	}
	return strings.Join(lines, "\n")
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
