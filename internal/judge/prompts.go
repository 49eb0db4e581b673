package judge

import (
	"fmt"
	"strings"

	"paperlens/internal/types"
)

const filterInstruction = `You are a research paper relevance filter.
Determine whether each paper is relevant based on the acceptance criteria.

For each paper, respond with a JSON array:
[{"id": "arxiv_id", "is_relevant": true}, ...]

Only filter out papers clearly outside the acceptance criteria. When in
doubt, keep the paper.`

const scorerInstruction = `You are a research paper scorer.
Score each paper from 1-100 based on relevance, novelty, and potential impact.

For each paper, respond with a JSON array:
[{"id": "arxiv_id", "score": 1-100, "justification": "brief reason"}, ...]

Be calibrated: 90+ exceptional, 70-89 very good, 50-69 decent, below 50 low relevance.`

// renderPaperBlocks lists every paper in the batch with its identity so
// the model can key its array response.
func renderPaperBlocks(batch []types.Paper) string {
	var b strings.Builder
	for i, paper := range batch {
		fmt.Fprintf(&b, "Paper %d:\n", i+1)
		fmt.Fprintf(&b, "ID: %s\n", paper.ID)
		fmt.Fprintf(&b, "Title: %s\n", paper.Title)
		fmt.Fprintf(&b, "Abstract: %s\n", paper.Abstract)
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(paper.Authors, ", "))
		fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(paper.Categories, ", "))
	}
	return b.String()
}

func renderFilterPrompt(criteria string, batch []types.Paper) string {
	return fmt.Sprintf(`Acceptance Criteria: %s

Determine relevance for the following %d papers.

%s
Respond with a JSON array only:
[{"id": "arxiv_id", "is_relevant": true/false}, ...]`, criteria, len(batch), renderPaperBlocks(batch))
}

func renderScorerPrompt(criteria string, batch []types.Paper) string {
	return fmt.Sprintf(`Evaluation Context: %s

Score the following %d papers from 1-100.

%s
Respond with a JSON array only:
[{"id": "arxiv_id", "score": 1-100, "justification": "brief reason"}, ...]`, criteria, len(batch), renderPaperBlocks(batch))
}
