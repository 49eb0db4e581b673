// Package pipeline orchestrates one triage run: discover candidate papers,
// filter for relevance, score quality, analyze the top selections, and
// deliver a digest. Stages never abort the run; an empty stage output
// short-circuits into a status notification instead.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"paperlens/internal/analyze"
	"paperlens/internal/judge"
	"paperlens/internal/storage"
	"paperlens/internal/types"
)

// Settings are the per-run knobs, resolved from configuration.
type Settings struct {
	Topics             []string
	Categories         []string
	TraceBackDays      int
	WindowEndDays      int
	AcceptanceCriteria string
	ScoreThreshold     int
	MaxItems           int
}

// Discoverer finds candidate papers within the configured window.
type Discoverer interface {
	Discover(ctx context.Context, topics []string, startDaysAgo, endDaysAgo int, categories []string) []types.Paper
}

// RelevanceFilter produces a relevance verdict per paper.
type RelevanceFilter interface {
	Run(ctx context.Context, papers []types.Paper, criteria string) judge.Outcome[types.FilteredPaper]
}

// QualityScorer produces a scored verdict per paper, sorted score-descending.
type QualityScorer interface {
	Run(ctx context.Context, papers []types.Paper, criteria string) judge.Outcome[types.ScoredPaper]
}

// DeepAnalyzer produces a full analysis for one selected paper.
type DeepAnalyzer interface {
	Analyze(ctx context.Context, paper types.Paper, initialScore int, feedback types.CommunityFeedback, content, criteria string) types.PaperAnalysis
}

// FeedbackSearcher gathers community reception for one paper.
type FeedbackSearcher interface {
	Search(ctx context.Context, title, paperID string) types.CommunityFeedback
}

// ContentExtractor fetches a paper's readable text.
type ContentExtractor interface {
	Extract(ctx context.Context, location, paperID string) string
}

// NotificationSender delivers digests and status messages.
type NotificationSender interface {
	SendDigest(ctx context.Context, items []types.DigestItem) []types.NotificationResult
	SendStatus(ctx context.Context, message string) []types.NotificationResult
}

// HistoryStore persists run summaries and delivered papers. A nil store
// disables persistence.
type HistoryStore interface {
	FilterNew(ctx context.Context, papers []types.Paper) []types.Paper
	MarkDelivered(ctx context.Context, runID string, papers []types.Paper) error
	RecordRun(ctx context.Context, rec storage.RunRecord) error
}

// Pipeline wires the stage collaborators together.
type Pipeline struct {
	settings Settings

	discoverer Discoverer
	filter     RelevanceFilter
	scorer     QualityScorer
	analyzer   DeepAnalyzer
	feedback   FeedbackSearcher
	content    ContentExtractor
	notifier   NotificationSender
	store      HistoryStore

	now func() time.Time
}

// New assembles a Pipeline. The store may be nil.
func New(settings Settings, discoverer Discoverer, filter RelevanceFilter,
	scorer QualityScorer, analyzer DeepAnalyzer, feedback FeedbackSearcher,
	content ContentExtractor, notifier NotificationSender, store HistoryStore) *Pipeline {
	return &Pipeline{
		settings:   settings,
		discoverer: discoverer,
		filter:     filter,
		scorer:     scorer,
		analyzer:   analyzer,
		feedback:   feedback,
		content:    content,
		notifier:   notifier,
		store:      store,
		now:        time.Now,
	}
}

// Run executes one complete triage pass and returns the delivered digest
// items. An empty return is a normal outcome (no candidates survived a
// stage); the status notification carries the reason.
func (p *Pipeline) Run(ctx context.Context) []types.DigestItem {
	runID := uuid.NewString()
	startedAt := p.now().UTC()
	log := slog.With("run_id", runID)

	log.Info("starting triage run", "topics", p.settings.Topics)

	rec := storage.RunRecord{ID: runID, StartedAt: startedAt}

	papers := p.discoverer.Discover(ctx, p.settings.Topics,
		p.settings.TraceBackDays, p.settings.WindowEndDays, p.settings.Categories)
	rec.Discovered = len(papers)

	if p.store != nil {
		papers = p.store.FilterNew(ctx, papers)
	}

	if len(papers) == 0 {
		log.Warn("no papers found")
		p.finish(ctx, log, rec,
			"No papers found from arxiv for the specified search criteria.")
		return nil
	}
	log.Info("papers discovered", "count", len(papers))

	filterOut := p.filter.Run(ctx, papers, p.settings.AcceptanceCriteria)
	rec.FilterFailed, rec.FilterTotal = filterOut.FailedBatches, filterOut.TotalBatches

	relevant := make([]types.Paper, 0, len(filterOut.Verdicts))
	for _, v := range filterOut.Verdicts {
		if v.IsRelevant {
			relevant = append(relevant, v.Paper)
		}
	}
	rec.Relevant = len(relevant)
	log.Info("relevance filter done", "relevant", len(relevant),
		"failed_batches", filterOut.FailedBatches, "total_batches", filterOut.TotalBatches)

	if len(relevant) == 0 {
		log.Warn("no papers passed the relevance filter")
		p.finish(ctx, log, rec, buildStatusMessage(
			"No papers passed the relevance filter.",
			rec.Discovered, filterOut.FailedBatches, filterOut.TotalBatches, 0, 0))
		return nil
	}

	scoreOut := p.scorer.Run(ctx, relevant, p.settings.AcceptanceCriteria)
	rec.ScorerFailed, rec.ScorerTotal = scoreOut.FailedBatches, scoreOut.TotalBatches

	top := p.selectTop(scoreOut.Verdicts)
	rec.Selected = len(top)
	log.Info("scoring done", "above_threshold", len(top),
		"failed_batches", scoreOut.FailedBatches, "total_batches", scoreOut.TotalBatches)

	if len(top) == 0 {
		log.Warn("no papers met the score threshold", "threshold", p.settings.ScoreThreshold)
		p.finish(ctx, log, rec, buildStatusMessage(
			fmt.Sprintf("No papers met the score threshold (%d).", p.settings.ScoreThreshold),
			rec.Discovered, filterOut.FailedBatches, filterOut.TotalBatches,
			scoreOut.FailedBatches, scoreOut.TotalBatches))
		return nil
	}

	items := make([]types.DigestItem, 0, len(top))
	delivered := make([]types.Paper, 0, len(top))
	for _, scored := range top {
		paper := scored.Paper
		log.Info("analyzing paper", "paper_id", paper.ID, "title", paper.Title, "score", scored.Score)

		fb := p.feedback.Search(ctx, paper.Title, paper.ID)
		text := p.content.Extract(ctx, paper.PDFURL, paper.ID)

		analysis := p.analyzer.Analyze(ctx, paper, scored.Score, fb, text,
			p.settings.AcceptanceCriteria)
		items = append(items, analyze.ToDigestItem(analysis))
		delivered = append(delivered, paper)
	}
	log.Info("analysis complete", "count", len(items))

	p.notifier.SendDigest(ctx, items)

	rec.Delivered = len(items)
	rec.Status = fmt.Sprintf("delivered %d papers", len(items))
	if p.store != nil {
		if err := p.store.MarkDelivered(ctx, runID, delivered); err != nil {
			log.Error("failed to record delivered papers", "error", err)
		}
	}
	p.record(ctx, log, rec)

	return items
}

// selectTop keeps verdicts at or above the threshold and caps the result
// at MaxItems. Verdicts arrive sorted score-descending and ties keep their
// submission order, so the cap is deterministic.
func (p *Pipeline) selectTop(verdicts []types.ScoredPaper) []types.ScoredPaper {
	qualified := make([]types.ScoredPaper, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Score >= p.settings.ScoreThreshold {
			qualified = append(qualified, v)
		}
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Score > qualified[j].Score
	})
	if len(qualified) > p.settings.MaxItems {
		qualified = qualified[:p.settings.MaxItems]
	}
	return qualified
}

// finish sends a status notification for a short-circuited run and records
// the run summary.
func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, rec storage.RunRecord, message string) {
	p.notifier.SendStatus(ctx, message)
	rec.Status = message
	p.record(ctx, log, rec)
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, rec storage.RunRecord) {
	if p.store == nil {
		return
	}
	rec.FinishedAt = p.now().UTC()
	if err := p.store.RecordRun(ctx, rec); err != nil {
		log.Error("failed to record run", "error", err)
	}
}
