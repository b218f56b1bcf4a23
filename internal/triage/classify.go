package triage

import (
	"context"
	"log"
	"reviewbot/internal/domain"
	"strings"
)

type Classification struct {
	Category domain.Category
	Summary  string
	Reason   string
}

// classify asks the oracle for {category, summary, reason}. A missing
// category, or one absent from the taxonomy, yields CategoryUnclassified
// with empty summary and reason.
func (r *run) classify(ctx context.Context, review domain.Review) Classification {
	fields, err := r.complete(ctx, r.p.deps.Oracle, classifySystemPrompt, reviewUserPrompt, map[string]string{
		"review": promptInput(review),
	})
	if err != nil {
		log.Printf("triage classify review=%s failed (non-fatal): %v", review.ID, err)
		return Classification{Category: domain.CategoryUnclassified}
	}

	name, _ := fields.String("category")
	cat, ok := r.p.opts.Taxonomy.Category(strings.ToLower(name))
	if !ok {
		log.Printf("triage classify review=%s category=%q not in taxonomy", review.ID, name)
		return Classification{Category: domain.CategoryUnclassified}
	}
	summary, _ := fields.String("summary")
	reason, _ := fields.String("reason")
	return Classification{
		Category: cat,
		Summary:  strings.TrimSpace(summary),
		Reason:   strings.TrimSpace(reason),
	}
}
