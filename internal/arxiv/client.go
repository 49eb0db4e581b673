// Package arxiv queries the arXiv Atom API and turns feed pages into
// candidate papers for the pipeline.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paperlens/internal/types"
)

// DefaultBaseURL is the arXiv API search endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

const userAgent = "paperlens/1.0"

// Client fetches one feed page at a time from the arXiv API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. A nil httpClient gets a 120s timeout, matching
// the API's worst-case response time for large pages.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Search returns one page of results for the quoted keyword query, sorted
// newest-first by submission date.
func (c *Client) Search(ctx context.Context, query string, start, maxResults int) ([]types.Paper, error) {
	q := url.Values{}
	q.Set("search_query", fmt.Sprintf("all:%q", query))
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("max_results", fmt.Sprintf("%d", maxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	pageURL := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	return parseFeed(body), nil
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func parseFeed(body []byte) []types.Paper {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		slog.Warn("failed to parse arxiv feed", "error", err)
		return nil
	}

	papers := make([]types.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper, ok := parseEntry(entry)
		if !ok {
			slog.Warn("skipping malformed feed entry", "entry_id", entry.ID)
			continue
		}
		papers = append(papers, paper)
	}
	return papers
}

// parseEntry converts a feed entry into a Paper. Entries without a
// derivable identity are rejected; everything else degrades gracefully.
func parseEntry(entry atomEntry) (types.Paper, bool) {
	id := entryID(entry.ID)
	if id == "" {
		return types.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
	}

	var categories []string
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	return types.Paper{
		ID:         id,
		Title:      collapseWhitespace(entry.Title),
		Abstract:   collapseWhitespace(entry.Summary),
		Authors:    authors,
		Published:  parseTime(entry.Published),
		Updated:    parseTime(entry.Updated),
		PDFURL:     pdfURL,
		Categories: categories,
	}, true
}

// entryID extracts the arXiv identity from the entry's canonical id URL,
// e.g. "http://arxiv.org/abs/2501.01234v1" -> "2501.01234v1".
func entryID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if idx := strings.LastIndex(raw, "/abs/"); idx >= 0 {
		return raw[idx+len("/abs/"):]
	}
	return ""
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
