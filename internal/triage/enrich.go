package triage

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"strings"
)

type Enrichment struct {
	Sentiment   domain.SentimentScore
	SentimentOK bool
	Impact      string
	Solution    string

	// Severity is the oracle's 0-10 impact score, clamped.
	Severity float64
}

// enrich scores sentiment for every ticketed category and asks the impact
// oracle for bugs and feature requests. Only feedback sentiment feeds the
// run mean.
func (r *run) enrich(ctx context.Context, review domain.Review, cls Classification) Enrichment {
	var enr Enrichment
	if r.p.deps.Sentiment != nil {
		callCtx, cancel := r.callContext(ctx)
		score, err := r.p.deps.Sentiment.Score(callCtx, ticketText(review))
		cancel()
		if err != nil {
			log.Printf("triage sentiment review=%s failed, using neutral (non-fatal): %v", review.ID, err)
		} else {
			enr.Sentiment = score
			enr.SentimentOK = true
		}
	}
	if cls.Category == domain.CategoryFeedback && enr.SentimentOK {
		r.agg.addSentiment(enr.Sentiment.Value)
	}

	var system, label string
	switch cls.Category {
	case domain.CategoryBug:
		system, label = bugImpactSystemPrompt, "Bug text"
	case domain.CategoryFeatureRequest:
		system, label = featureImpactSystemPrompt, "Feature request"
	default:
		return enr
	}
	if ctx.Err() != nil {
		return enr
	}

	input := fmt.Sprintf("Summary: %s\n\nReason: %s\n\n%s: %s", cls.Summary, cls.Reason, label, review.Text)
	fields, err := r.complete(ctx, r.p.deps.Oracle, system, reviewUserPrompt, map[string]string{
		"review": ticketTitle(review) + "\n" + input,
	})
	if err != nil {
		log.Printf("triage impact review=%s category=%s failed, using defaults (non-fatal): %v", review.ID, cls.Category, err)
		return enr
	}
	enr.Impact, _ = fields.String("impact")
	enr.Impact = strings.TrimSpace(enr.Impact)
	if sev, ok := fields.Number("severity"); ok {
		enr.Severity = clampSeverity(sev)
	}
	if cls.Category == domain.CategoryBug {
		enr.Solution, _ = fields.String("solution")
		enr.Solution = strings.TrimSpace(enr.Solution)
	}
	return enr
}

func clampSeverity(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}
