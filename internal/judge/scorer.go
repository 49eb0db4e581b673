package judge

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"paperlens/internal/ai"
	"paperlens/internal/types"
)

// fallbackScore is the neutral default substituted when a paper's score is
// missing or unparsable.
const fallbackScore = 50

// Scorer assigns each paper a quality score in [1, 100].
type Scorer struct {
	llm       ai.Completer
	model     string
	batchSize int
}

// NewScorer builds a quality scorer.
func NewScorer(llm ai.Completer, model string, batchSize int) *Scorer {
	return &Scorer{llm: llm, model: model, batchSize: batchSize}
}

type scoreEntry struct {
	ID string `json:"id"`
	// Score is decoded loosely: models occasionally emit it as a string
	// or omit it entirely.
	Score         any    `json:"score"`
	Justification string `json:"justification"`
}

// Run scores every paper and returns verdicts ordered by score descending.
// Ties keep submission order (stable sort), which is the order later
// selection relies on.
func (s *Scorer) Run(ctx context.Context, papers []types.Paper, criteria string) Outcome[types.ScoredPaper] {
	out := Run(ctx, s.llm, Spec[types.ScoredPaper]{
		Name:      "scorer",
		Model:     s.model,
		System:    scorerInstruction,
		BatchSize: s.batchSize,
		Render:    renderScorerPrompt,
		Parse:     parseScoreResponse,
		Fallback: func(paper types.Paper) types.ScoredPaper {
			return types.ScoredPaper{Paper: paper, Score: fallbackScore}
		},
	}, papers, criteria)

	sort.SliceStable(out.Verdicts, func(i, j int) bool {
		return out.Verdicts[i].Score > out.Verdicts[j].Score
	})

	top := 0
	if len(out.Verdicts) > 0 {
		top = out.Verdicts[0].Score
	}
	slog.Info("scoring finished",
		"papers", len(papers),
		"top_score", top,
		"failed_batches", out.FailedBatches,
		"total_batches", out.TotalBatches)

	return out
}

func parseScoreResponse(response string, batch []types.Paper) (map[string]types.ScoredPaper, error) {
	entries, err := ai.Decode[[]scoreEntry](response)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]types.Paper, len(batch))
	for _, paper := range batch {
		byID[paper.ID] = paper
	}

	verdicts := make(map[string]types.ScoredPaper, len(entries))
	for _, entry := range entries {
		paper, ok := byID[entry.ID]
		if !ok {
			continue
		}
		verdicts[entry.ID] = types.ScoredPaper{
			Paper:         paper,
			Score:         clampScore(coerceScore(entry.Score)),
			Justification: entry.Justification,
		}
	}
	return verdicts, nil
}

// coerceScore extracts an integer from whatever JSON value the model put
// in the score field, defaulting to the neutral score.
func coerceScore(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return fallbackScore
}

// clampScore forces a score into [1, 100].
func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}
