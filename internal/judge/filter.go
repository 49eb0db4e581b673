package judge

import (
	"context"
	"log/slog"

	"paperlens/internal/ai"
	"paperlens/internal/types"
)

// Filter marks papers as relevant or not against the acceptance criteria.
// Its fallback admits the paper: a failed batch must never silently drop
// candidates, so false negatives are traded away.
type Filter struct {
	llm       ai.Completer
	model     string
	batchSize int
}

// NewFilter builds a relevance filter.
func NewFilter(llm ai.Completer, model string, batchSize int) *Filter {
	return &Filter{llm: llm, model: model, batchSize: batchSize}
}

type filterEntry struct {
	ID         string `json:"id"`
	IsRelevant bool   `json:"is_relevant"`
}

// Run judges every paper and returns one FilteredPaper per input.
func (f *Filter) Run(ctx context.Context, papers []types.Paper, criteria string) Outcome[types.FilteredPaper] {
	out := Run(ctx, f.llm, Spec[types.FilteredPaper]{
		Name:      "filter",
		Model:     f.model,
		System:    filterInstruction,
		BatchSize: f.batchSize,
		Render:    renderFilterPrompt,
		Parse:     parseFilterResponse,
		Fallback: func(paper types.Paper) types.FilteredPaper {
			return types.FilteredPaper{Paper: paper, IsRelevant: true}
		},
	}, papers, criteria)

	relevant := 0
	for _, v := range out.Verdicts {
		if v.IsRelevant {
			relevant++
		}
	}
	slog.Info("relevance filter finished",
		"papers", len(papers),
		"relevant", relevant,
		"failed_batches", out.FailedBatches,
		"total_batches", out.TotalBatches)

	return out
}

func parseFilterResponse(response string, batch []types.Paper) (map[string]types.FilteredPaper, error) {
	entries, err := ai.Decode[[]filterEntry](response)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]types.Paper, len(batch))
	for _, paper := range batch {
		byID[paper.ID] = paper
	}

	verdicts := make(map[string]types.FilteredPaper, len(entries))
	for _, entry := range entries {
		paper, ok := byID[entry.ID]
		if !ok {
			// Hallucinated identity; drop the entry, not the batch.
			continue
		}
		verdicts[entry.ID] = types.FilteredPaper{Paper: paper, IsRelevant: entry.IsRelevant}
	}
	return verdicts, nil
}
