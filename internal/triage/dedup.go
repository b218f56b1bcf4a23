package triage

import (
	"context"
	"log"
	"reviewbot/internal/domain"
	"strings"
)

// isDuplicate asks whether review restates one of prior, the summaries
// already in its category bucket. An empty bucket is never a duplicate and
// costs no oracle call. Oracle failure means not a duplicate.
func (r *run) isDuplicate(ctx context.Context, cat domain.Category, prior []string, review domain.Review) bool {
	if len(prior) == 0 {
		return false
	}
	system, ok := dedupSystemPrompts[cat]
	if !ok {
		return false
	}
	fields, err := r.complete(ctx, r.p.deps.Oracle, system, dedupUserPrompt, map[string]string{
		"summaries": strings.Join(prior, ""),
		"query":     ticketText(review),
		"review":    promptInput(review),
	})
	if err != nil {
		log.Printf("triage dedup review=%s category=%s failed, treating as unique (non-fatal): %v", review.ID, cat, err)
		return false
	}
	answer, ok := fields.Number("answer")
	return ok && answer == 1
}
