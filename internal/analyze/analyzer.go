// Package analyze performs the single-paper deep analysis step and
// projects results into notification-ready digest items.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paperlens/internal/ai"
	"paperlens/internal/types"
)

const (
	// promptContentBudget caps how much extracted paper text goes into
	// the analysis prompt.
	promptContentBudget = 15000
	// storedExcerptBudget caps the excerpt retained on the result,
	// independent of the prompt budget.
	storedExcerptBudget = 2000
)

const analyzerInstruction = `You are a research paper analyst providing comprehensive paper analysis.

Your task is to analyze papers and provide:
1. A concise summary (under 100 words)
2. Author information with affiliations/organizations if identifiable
3. A final rating (1-100) with justification (under 100 words)
4. Community reputation summary (under 100 words)

Respond with a JSON object:
{
    "summary": "Concise summary of the paper",
    "authors_affiliations": "Authors with their affiliations",
    "rating": <integer 1-100>,
    "rating_justification": "Brief justification",
    "community_summary": "Summary of community reception"
}

Be thorough but concise. Focus on the most important insights.`

// Analyzer issues one reasoning call per selected paper to synthesize the
// final report.
type Analyzer struct {
	llm   ai.Completer
	model string
}

// NewAnalyzer builds a deep analyzer.
func NewAnalyzer(llm ai.Completer, model string) *Analyzer {
	return &Analyzer{llm: llm, model: model}
}

type analysisPayload struct {
	Summary             string `json:"summary"`
	AuthorsAffiliations string `json:"authors_affiliations"`
	Rating              any    `json:"rating"`
	RatingJustification string `json:"rating_justification"`
	CommunitySummary    string `json:"community_summary"`
}

// Analyze is total: on any call or parse failure it returns a degraded
// analysis built from the inputs rather than an error, so one bad paper
// never aborts the digest loop.
func (a *Analyzer) Analyze(ctx context.Context, paper types.Paper, initialScore int, feedback types.CommunityFeedback, content, criteria string) types.PaperAnalysis {
	excerpt := truncate(content, promptContentBudget)
	if excerpt == "" {
		excerpt = "Paper content not available."
	}

	prompt := fmt.Sprintf(`Analyze this research paper comprehensively.

Evaluation Context: %s

Paper Title: %s

Authors: %s

Abstract: %s

Categories: %s

Initial Score: %d

Community Feedback:
%s

Paper Content (excerpt):
%s

Provide a comprehensive analysis. Respond with JSON only.`,
		criteria,
		paper.Title,
		strings.Join(paper.Authors, ", "),
		paper.Abstract,
		strings.Join(paper.Categories, ", "),
		initialScore,
		feedback.Summary,
		excerpt)

	response, err := a.llm.Complete(ctx, a.model, analyzerInstruction, prompt)
	if err != nil {
		slog.Error("analysis call failed, using degraded analysis", "paper", paper.ID, "error", err)
		return fallbackAnalysis(paper, initialScore, feedback)
	}

	payload, err := ai.Decode[analysisPayload](response)
	if err != nil {
		slog.Error("analysis response unusable, using degraded analysis", "paper", paper.ID, "error", err)
		return fallbackAnalysis(paper, initialScore, feedback)
	}

	score := initialScore
	if payload.Rating != nil {
		score = clampRating(payload.Rating, initialScore)
	}

	affiliations := payload.AuthorsAffiliations
	if affiliations == "" {
		affiliations = strings.Join(paper.Authors, ", ")
	}

	communityFeedback := payload.CommunitySummary
	if communityFeedback == "" {
		communityFeedback = feedback.Summary
	}

	return types.PaperAnalysis{
		Paper:               paper,
		Score:               score,
		ScoreJustification:  payload.RatingJustification,
		Summary:             payload.Summary,
		AuthorsAffiliations: affiliations,
		CommunityFeedback:   communityFeedback,
		ContentExcerpt:      truncate(excerpt, storedExcerptBudget),
	}
}

// fallbackAnalysis keeps the stage total: the initial score survives, the
// summary degrades to an abstract prefix, and the feedback passes through
// untouched.
func fallbackAnalysis(paper types.Paper, initialScore int, feedback types.CommunityFeedback) types.PaperAnalysis {
	return types.PaperAnalysis{
		Paper:               paper,
		Score:               initialScore,
		ScoreJustification:  "Analysis failed",
		Summary:             truncate(paper.Abstract, 200),
		AuthorsAffiliations: strings.Join(paper.Authors, ", "),
		CommunityFeedback:   feedback.Summary,
	}
}

func clampRating(v any, fallback int) int {
	var rating int
	switch n := v.(type) {
	case float64:
		rating = int(n)
	default:
		return fallback
	}
	if rating < 1 {
		return 1
	}
	if rating > 100 {
		return 100
	}
	return rating
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
