package arxiv

import (
	"context"
	"log/slog"
	"time"

	"paperlens/internal/types"
)

const (
	defaultPageSize = 200
	// maxPages bounds pagination per topic so a misbehaving upstream that
	// keeps returning pages cannot stall discovery.
	maxPages = 10
)

// Searcher is the page-query capability the fetcher paginates over.
type Searcher interface {
	Search(ctx context.Context, query string, start, maxResults int) ([]types.Paper, error)
}

// Fetcher discovers candidate papers for a set of topics within a publish
// window, deduplicating across topics and categories.
type Fetcher struct {
	source   Searcher
	pageSize int
	maxPages int
	now      func() time.Time
}

// NewFetcher wires a Fetcher over a page source.
func NewFetcher(source Searcher) *Fetcher {
	return &Fetcher{
		source:   source,
		pageSize: defaultPageSize,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Discover returns unique papers published between startDaysAgo and
// endDaysAgo days in the past (startDaysAgo is further back). When
// categories is non-empty, a paper must carry at least one of them.
//
// Transport failures are absorbed: a failed page query ends that topic's
// pagination and discovery moves on. An empty result is a valid outcome
// the orchestrator reports on, not an error.
func (f *Fetcher) Discover(ctx context.Context, topics []string, startDaysAgo, endDaysAgo int, categories []string) []types.Paper {
	now := f.now().UTC()
	windowStart := now.AddDate(0, 0, -startDaysAgo)
	windowEnd := now.AddDate(0, 0, -endDaysAgo)

	categorySet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		categorySet[c] = struct{}{}
	}

	slog.Info("discovering papers",
		"topics", topics,
		"window_start", windowStart.Format("2006-01-02"),
		"window_end", windowEnd.Format("2006-01-02"),
		"categories", categories)

	var result []types.Paper
	seen := make(map[string]struct{})

	for _, topic := range topics {
		matched := 0
		for _, paper := range f.searchWindow(ctx, topic, windowStart, windowEnd, categorySet) {
			matched++
			if _, ok := seen[paper.ID]; ok {
				continue
			}
			seen[paper.ID] = struct{}{}
			result = append(result, paper)
		}
		slog.Info("topic discovery finished", "topic", topic, "matched", matched)
	}

	slog.Info("discovery complete", "unique_papers", len(result))
	return result
}

// searchWindow paginates newest-first through one topic's results until the
// current page reaches past the window start, the source returns an empty
// page, or the page cap is hit.
func (f *Fetcher) searchWindow(ctx context.Context, topic string, windowStart, windowEnd time.Time, categorySet map[string]struct{}) []types.Paper {
	var matches []types.Paper
	offset := 0

	for page := 0; page < f.maxPages; page++ {
		papers, err := f.source.Search(ctx, topic, offset, f.pageSize)
		if err != nil {
			slog.Error("arxiv page query failed", "topic", topic, "offset", offset, "error", err)
			break
		}
		if len(papers) == 0 {
			break
		}

		oldest := papers[0].Published
		for _, paper := range papers {
			if paper.Published.Before(oldest) {
				oldest = paper.Published
			}
			if paper.Published.Before(windowStart) || paper.Published.After(windowEnd) {
				continue
			}
			if len(categorySet) > 0 && !intersects(paper.Categories, categorySet) {
				continue
			}
			matches = append(matches, paper)
		}

		// Results are newest-first, so once a page dips below the window
		// start every later page is older still.
		if oldest.Before(windowStart) {
			break
		}

		offset += f.pageSize
	}

	return matches
}

func intersects(categories []string, set map[string]struct{}) bool {
	for _, c := range categories {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}
