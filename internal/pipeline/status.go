package pipeline

import (
	"fmt"
	"strings"
)

// buildStatusMessage composes the degraded-run report: the reason a run
// produced no digest, plus batch-failure counters so a reader can tell an
// empty result apart from a broken one.
func buildStatusMessage(reason string, totalPapers, filterFailed, filterTotal, scorerFailed, scorerTotal int) string {
	lines := []string{
		reason,
		"",
		fmt.Sprintf("Papers fetched from arxiv: %d", totalPapers),
	}

	if filterTotal > 0 {
		if filterFailed > 0 {
			lines = append(lines, fmt.Sprintf("Filter errors: %d/%d batches failed", filterFailed, filterTotal))
		} else {
			lines = append(lines, fmt.Sprintf("Filter: %d batches processed successfully", filterTotal))
		}
	}

	if scorerTotal > 0 {
		if scorerFailed > 0 {
			lines = append(lines, fmt.Sprintf("Scorer errors: %d/%d batches failed", scorerFailed, scorerTotal))
		} else {
			lines = append(lines, fmt.Sprintf("Scorer: %d batches processed successfully", scorerTotal))
		}
	}

	if filterFailed > 0 || scorerFailed > 0 {
		lines = append(lines, "",
			"Note: Connection errors may have affected paper scoring. "+
				"Papers with failed scoring default to score 50.")
	}

	return strings.Join(lines, "\n")
}
