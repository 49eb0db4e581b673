package analyze

import "paperlens/internal/types"

// ToDigestItem flattens an analysis into its notification-ready form.
func ToDigestItem(analysis types.PaperAnalysis) types.DigestItem {
	summary := analysis.Summary
	if summary == "" {
		summary = truncate(analysis.Paper.Abstract, 300)
	}

	return types.DigestItem{
		Title:               analysis.Paper.Title,
		Summary:             summary,
		Authors:             analysis.AuthorsAffiliations,
		PublishDate:         analysis.Paper.Published.Format("2006-01-02"),
		Rating:              analysis.Score,
		RatingJustification: analysis.ScoreJustification,
		CommunityReputation: analysis.CommunityFeedback,
		ArxivURL:            analysis.Paper.AbsURL(),
	}
}
