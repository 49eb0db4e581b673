// Package judge runs batched LLM judgments over candidate papers. The
// relevance filter and the quality scorer are both specializations of one
// generic executor that differs only in verdict shape, prompt, and
// fallback value.
package judge

import (
	"context"
	"log/slog"

	"paperlens/internal/ai"
	"paperlens/internal/types"
)

// Outcome carries one verdict per input item plus batch failure counters.
// len(Verdicts) always equals the input length: items whose batch failed
// receive the stage's fallback verdict instead of being dropped.
type Outcome[V any] struct {
	Verdicts      []V
	TotalBatches  int
	FailedBatches int
}

// Spec describes one judgment stage for the executor.
type Spec[V any] struct {
	// Name labels log lines ("filter", "scorer").
	Name string
	// Model is the reasoning model for this stage.
	Model string
	// System is the stage's system instruction.
	System string
	// BatchSize is the number of papers per reasoning call.
	BatchSize int
	// Render builds the user prompt for one batch.
	Render func(criteria string, batch []types.Paper) string
	// Parse extracts verdicts from a response, keyed by paper identity.
	// Entries for identities outside the batch are ignored by the
	// executor. A parse error fails the whole batch.
	Parse func(response string, batch []types.Paper) (map[string]V, error)
	// Fallback produces the conservative verdict substituted for any
	// paper that did not receive a parsed entry.
	Fallback func(paper types.Paper) V
}

// Run partitions papers into batches of spec.BatchSize, issues one
// reasoning call per batch, and assembles verdicts in submission order.
// Call and parse failures are absorbed: the affected batch gets fallback
// verdicts and FailedBatches is incremented, then processing continues.
func Run[V any](ctx context.Context, llm ai.Completer, spec Spec[V], papers []types.Paper, criteria string) Outcome[V] {
	if len(papers) == 0 {
		return Outcome[V]{}
	}

	batchSize := spec.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	totalBatches := (len(papers) + batchSize - 1) / batchSize
	out := Outcome[V]{
		Verdicts:     make([]V, 0, len(papers)),
		TotalBatches: totalBatches,
	}

	for i := 0; i < len(papers); i += batchSize {
		end := i + batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batch := papers[i:end]

		slog.Info("judging batch",
			"stage", spec.Name,
			"batch", i/batchSize+1,
			"of", totalBatches,
			"papers", len(batch))

		verdicts, ok := runBatch(ctx, llm, spec, batch, criteria)
		if !ok {
			out.FailedBatches++
		}
		out.Verdicts = append(out.Verdicts, verdicts...)
	}

	return out
}

// runBatch judges one batch. The bool result reports whether the reasoning
// call produced a usable payload; either way one verdict per paper is
// returned.
func runBatch[V any](ctx context.Context, llm ai.Completer, spec Spec[V], batch []types.Paper, criteria string) ([]V, bool) {
	prompt := spec.Render(criteria, batch)

	response, err := llm.Complete(ctx, spec.Model, spec.System, prompt)
	if err != nil {
		slog.Warn("batch judgment call failed, using fallback verdicts",
			"stage", spec.Name, "papers", len(batch), "error", err)
		return fallbackVerdicts(spec, batch), false
	}

	parsed, err := spec.Parse(response, batch)
	if err != nil {
		slog.Warn("batch judgment response unusable, using fallback verdicts",
			"stage", spec.Name, "papers", len(batch), "error", err)
		return fallbackVerdicts(spec, batch), false
	}

	verdicts := make([]V, 0, len(batch))
	for _, paper := range batch {
		if v, ok := parsed[paper.ID]; ok {
			verdicts = append(verdicts, v)
			continue
		}
		verdicts = append(verdicts, spec.Fallback(paper))
	}
	return verdicts, true
}

func fallbackVerdicts[V any](spec Spec[V], batch []types.Paper) []V {
	verdicts := make([]V, 0, len(batch))
	for _, paper := range batch {
		verdicts = append(verdicts, spec.Fallback(paper))
	}
	return verdicts
}
