// Package types defines the core data structures shared across the
// paperlens pipeline stages.
package types

import (
	"fmt"
	"time"
)

// Paper is the raw record of a paper discovered on arXiv. Instances are
// shared read-only across the pipeline; later stages wrap a Paper in a new
// record instead of mutating it.
type Paper struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Authors    []string  `json:"authors"`
	Published  time.Time `json:"published"`
	Updated    time.Time `json:"updated"`
	PDFURL     string    `json:"pdf_url"`
	Categories []string  `json:"categories"`
}

// AbsURL returns the canonical abstract page URL for the paper.
func (p Paper) AbsURL() string {
	return fmt.Sprintf("https://arxiv.org/abs/%s", p.ID)
}

// FilteredPaper is the relevance filter's verdict for one paper.
type FilteredPaper struct {
	Paper      Paper
	IsRelevant bool
}

// ScoredPaper is the quality scorer's verdict for one paper. Score is
// always within [1, 100]; out-of-range or missing scores are clamped or
// defaulted before a ScoredPaper is constructed.
type ScoredPaper struct {
	Paper         Paper
	Score         int
	Justification string
}

// CommunityFeedback summarizes community reception of a paper, gathered by
// the web search collaborator. Sources holds at most five reference URLs.
type CommunityFeedback struct {
	PaperID string
	Summary string
	Sources []string
}

// PaperAnalysis is the deep analyzer's synthesis for one selected paper.
// It is total: every selected paper yields a PaperAnalysis even when the
// analysis call fails (the analyzer substitutes a degraded fallback).
type PaperAnalysis struct {
	Paper               Paper
	Score               int
	ScoreJustification  string
	Summary             string
	AuthorsAffiliations string
	CommunityFeedback   string
	ContentExcerpt      string
}

// DigestItem is the flattened, notification-ready projection of a
// PaperAnalysis. Immutable once built. The json tags define the webhook
// payload shape.
type DigestItem struct {
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	Authors             string `json:"authors"`
	PublishDate         string `json:"publish_date"`
	Rating              int    `json:"rating"`
	RatingJustification string `json:"rating_justification"`
	CommunityReputation string `json:"community_reputation"`
	ArxivURL            string `json:"arxiv_url"`
}

// NotificationResult reports delivery success or failure for one channel.
// Consumed only for logging; the pipeline never branches on it.
type NotificationResult struct {
	Success bool
	Channel string
	Message string
}
