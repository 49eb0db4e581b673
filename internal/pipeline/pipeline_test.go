package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperlens/internal/judge"
	"paperlens/internal/storage"
	"paperlens/internal/types"
)

type fakeDiscoverer struct {
	papers []types.Paper
}

func (f *fakeDiscoverer) Discover(_ context.Context, _ []string, _, _ int, _ []string) []types.Paper {
	return f.papers
}

type fakeFilter struct {
	outcome judge.Outcome[types.FilteredPaper]
	calls   int
}

func (f *fakeFilter) Run(_ context.Context, papers []types.Paper, _ string) judge.Outcome[types.FilteredPaper] {
	f.calls++
	if f.outcome.Verdicts == nil && f.outcome.TotalBatches == 0 {
		// Default: everything relevant, one clean batch.
		out := judge.Outcome[types.FilteredPaper]{TotalBatches: 1}
		for _, p := range papers {
			out.Verdicts = append(out.Verdicts, types.FilteredPaper{Paper: p, IsRelevant: true})
		}
		return out
	}
	return f.outcome
}

type fakeScorer struct {
	scores map[string]int
	failed int
	calls  int
}

func (f *fakeScorer) Run(_ context.Context, papers []types.Paper, _ string) judge.Outcome[types.ScoredPaper] {
	f.calls++
	out := judge.Outcome[types.ScoredPaper]{TotalBatches: 1, FailedBatches: f.failed}
	for _, p := range papers {
		out.Verdicts = append(out.Verdicts, types.ScoredPaper{Paper: p, Score: f.scores[p.ID]})
	}
	return out
}

type fakeAnalyzer struct {
	analyzed []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, paper types.Paper, initialScore int, feedback types.CommunityFeedback, content, _ string) types.PaperAnalysis {
	f.analyzed = append(f.analyzed, paper.ID)
	return types.PaperAnalysis{
		Paper:             paper,
		Score:             initialScore,
		Summary:           "summary of " + paper.ID,
		CommunityFeedback: feedback.Summary,
		ContentExcerpt:    content,
	}
}

type fakeFeedback struct{ calls int }

func (f *fakeFeedback) Search(_ context.Context, _, paperID string) types.CommunityFeedback {
	f.calls++
	return types.CommunityFeedback{PaperID: paperID, Summary: "feedback for " + paperID}
}

type fakeContent struct{ calls int }

func (f *fakeContent) Extract(_ context.Context, _, paperID string) string {
	f.calls++
	return "content of " + paperID
}

type fakeNotifier struct {
	digests  [][]types.DigestItem
	statuses []string
}

func (f *fakeNotifier) SendDigest(_ context.Context, items []types.DigestItem) []types.NotificationResult {
	f.digests = append(f.digests, items)
	return []types.NotificationResult{{Success: true, Channel: "fake"}}
}

func (f *fakeNotifier) SendStatus(_ context.Context, message string) []types.NotificationResult {
	f.statuses = append(f.statuses, message)
	return []types.NotificationResult{{Success: true, Channel: "fake"}}
}

type fakeStore struct {
	seen      map[string]bool
	delivered []string
	runs      []storage.RunRecord
}

func (f *fakeStore) FilterNew(_ context.Context, papers []types.Paper) []types.Paper {
	var fresh []types.Paper
	for _, p := range papers {
		if !f.seen[p.ID] {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

func (f *fakeStore) MarkDelivered(_ context.Context, _ string, papers []types.Paper) error {
	for _, p := range papers {
		f.delivered = append(f.delivered, p.ID)
	}
	return nil
}

func (f *fakeStore) RecordRun(_ context.Context, rec storage.RunRecord) error {
	f.runs = append(f.runs, rec)
	return nil
}

func testSettings() Settings {
	return Settings{
		Topics:             []string{"machine learning"},
		TraceBackDays:      7,
		AcceptanceCriteria: "AI agents",
		ScoreThreshold:     50,
		MaxItems:           5,
	}
}

func makePapers(n int) []types.Paper {
	papers := make([]types.Paper, n)
	for i := range papers {
		papers[i] = types.Paper{
			ID:    fmt.Sprintf("2501.%05d", i+1),
			Title: fmt.Sprintf("Paper %d", i+1),
		}
	}
	return papers
}

type fixture struct {
	pipeline *Pipeline
	filter   *fakeFilter
	scorer   *fakeScorer
	analyzer *fakeAnalyzer
	feedback *fakeFeedback
	content  *fakeContent
	notifier *fakeNotifier
	store    *fakeStore
}

func newFixture(settings Settings, papers []types.Paper, store *fakeStore) *fixture {
	f := &fixture{
		filter:   &fakeFilter{},
		scorer:   &fakeScorer{scores: map[string]int{}},
		analyzer: &fakeAnalyzer{},
		feedback: &fakeFeedback{},
		content:  &fakeContent{},
		notifier: &fakeNotifier{},
		store:    store,
	}
	var history HistoryStore
	if store != nil {
		history = store
	}
	f.pipeline = New(settings, &fakeDiscoverer{papers: papers}, f.filter, f.scorer,
		f.analyzer, f.feedback, f.content, f.notifier, history)
	return f
}

func TestRunDeliversDigest(t *testing.T) {
	papers := makePapers(3)
	f := newFixture(testSettings(), papers, nil)
	f.scorer.scores = map[string]int{"2501.00001": 90, "2501.00002": 40, "2501.00003": 70}

	items := f.pipeline.Run(context.Background())

	require.Len(t, items, 2)
	assert.Equal(t, "Paper 1", items[0].Title)
	assert.Equal(t, 90, items[0].Rating)
	assert.Equal(t, "Paper 3", items[1].Title)
	assert.Equal(t, 70, items[1].Rating)

	// Each selected paper went through feedback, content, and analysis.
	assert.Equal(t, []string{"2501.00001", "2501.00003"}, f.analyzer.analyzed)
	assert.Equal(t, 2, f.feedback.calls)
	assert.Equal(t, 2, f.content.calls)
	assert.Equal(t, "feedback for 2501.00001", items[0].CommunityReputation)

	require.Len(t, f.notifier.digests, 1)
	assert.Len(t, f.notifier.digests[0], 2)
	assert.Empty(t, f.notifier.statuses)
}

func TestRunMaxItemsCapsSelection(t *testing.T) {
	settings := testSettings()
	settings.MaxItems = 1
	papers := makePapers(3)
	f := newFixture(settings, papers, nil)
	f.scorer.scores = map[string]int{"2501.00001": 90, "2501.00002": 40, "2501.00003": 70}

	items := f.pipeline.Run(context.Background())

	require.Len(t, items, 1)
	assert.Equal(t, "Paper 1", items[0].Title)
}

func TestRunEmptyDiscoverySendsStatus(t *testing.T) {
	f := newFixture(testSettings(), nil, nil)

	items := f.pipeline.Run(context.Background())

	assert.Empty(t, items)
	assert.Empty(t, f.notifier.digests)
	require.Len(t, f.notifier.statuses, 1)
	assert.Contains(t, f.notifier.statuses[0], "No papers found from arxiv")
	assert.Equal(t, 0, f.filter.calls)
	assert.Equal(t, 0, f.scorer.calls)
}

func TestRunNoRelevantPapersSendsStatus(t *testing.T) {
	papers := makePapers(2)
	f := newFixture(testSettings(), papers, nil)
	f.filter.outcome = judge.Outcome[types.FilteredPaper]{
		Verdicts: []types.FilteredPaper{
			{Paper: papers[0], IsRelevant: false},
			{Paper: papers[1], IsRelevant: false},
		},
		TotalBatches: 1,
	}

	items := f.pipeline.Run(context.Background())

	assert.Empty(t, items)
	require.Len(t, f.notifier.statuses, 1)
	status := f.notifier.statuses[0]
	assert.Contains(t, status, "No papers passed the relevance filter.")
	assert.Contains(t, status, "Papers fetched from arxiv: 2")
	assert.Contains(t, status, "Filter: 1 batches processed successfully")
	assert.Equal(t, 0, f.scorer.calls)
}

func TestRunBelowThresholdSendsStatusWithCounters(t *testing.T) {
	papers := makePapers(2)
	f := newFixture(testSettings(), papers, nil)
	f.filter.outcome = judge.Outcome[types.FilteredPaper]{
		Verdicts: []types.FilteredPaper{
			{Paper: papers[0], IsRelevant: true},
			{Paper: papers[1], IsRelevant: true},
		},
		TotalBatches:  2,
		FailedBatches: 1,
	}
	f.scorer.scores = map[string]int{"2501.00001": 10, "2501.00002": 20}
	f.scorer.failed = 1

	items := f.pipeline.Run(context.Background())

	assert.Empty(t, items)
	require.Len(t, f.notifier.statuses, 1)
	status := f.notifier.statuses[0]
	assert.Contains(t, status, "No papers met the score threshold (50).")
	assert.Contains(t, status, "Filter errors: 1/2 batches failed")
	assert.Contains(t, status, "Scorer errors: 1/1 batches failed")
	assert.Contains(t, status, "default to score 50")
	assert.Equal(t, 0, len(f.analyzer.analyzed))
}

func TestRunSkipsPreviouslyDeliveredPapers(t *testing.T) {
	papers := makePapers(3)
	store := &fakeStore{seen: map[string]bool{"2501.00001": true}}
	f := newFixture(testSettings(), papers, store)
	f.scorer.scores = map[string]int{"2501.00002": 80, "2501.00003": 60}

	items := f.pipeline.Run(context.Background())

	require.Len(t, items, 2)
	assert.Equal(t, []string{"2501.00002", "2501.00003"}, store.delivered)

	require.Len(t, store.runs, 1)
	rec := store.runs[0]
	assert.Equal(t, 3, rec.Discovered)
	assert.Equal(t, 2, rec.Relevant)
	assert.Equal(t, 2, rec.Selected)
	assert.Equal(t, 2, rec.Delivered)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.FinishedAt.IsZero())
}

func TestRunRecordsShortCircuitedRun(t *testing.T) {
	store := &fakeStore{seen: map[string]bool{}}
	f := newFixture(testSettings(), nil, store)

	f.pipeline.Run(context.Background())

	require.Len(t, store.runs, 1)
	assert.Equal(t, 0, store.runs[0].Discovered)
	assert.Contains(t, store.runs[0].Status, "No papers found from arxiv")
}
