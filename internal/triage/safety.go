package triage

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"strings"
)

type safetyVerdict string

const (
	verdictSpam    safetyVerdict = "spam"
	verdictNSFW    safetyVerdict = "nsfw"
	verdictNotSpam safetyVerdict = "notspam"
)

// screen labels a review spam/nsfw/notspam and reports whether it looks
// machine-generated. Both checks fail open. ContentSafety is only asked
// about reviews the oracle did not already reject.
func (r *run) screen(ctx context.Context, review domain.Review) (safetyVerdict, bool) {
	verdict := verdictNotSpam
	fields, err := r.complete(ctx, r.p.deps.SafetyOracle, safetySystemPrompt, reviewUserPrompt, map[string]string{
		"review": promptInput(review),
	})
	if err != nil {
		log.Printf("triage safety oracle review=%s failed, treating as notspam (non-fatal): %v", review.ID, err)
	} else if label, ok := fields.String("category"); ok {
		switch safetyVerdict(strings.ToLower(strings.TrimSpace(label))) {
		case verdictSpam:
			verdict = verdictSpam
		case verdictNSFW:
			verdict = verdictNSFW
		}
	}
	if verdict != verdictNotSpam {
		log.Printf("triage review=%s is %s. Skipping ticket creation.", review.ID, verdict)
		return verdict, false
	}
	if ctx.Err() != nil || r.p.deps.Safety == nil {
		return verdict, false
	}

	callCtx, cancel := r.callContext(ctx)
	prob, err := r.p.deps.Safety.Predict(callCtx, review.Text)
	cancel()
	if err != nil {
		log.Printf("triage content safety review=%s failed, treating as human-written (non-fatal): %v", review.ID, err)
		return verdict, false
	}
	machine := prob > r.p.opts.AIGeneratedThreshold
	if machine {
		log.Printf("triage review=%s is machine-generated prob=%.2f. Skipping ticket creation.", review.ID, prob)
	}
	return verdict, machine
}

// ticketTitle is the review title, or a fallback naming the source and URL.
func ticketTitle(review domain.Review) string {
	if strings.TrimSpace(review.Title) != "" {
		return review.Title
	}
	return fmt.Sprintf("Ticket created from %s review %s", review.Source.DisplayName(), review.URL)
}

// ticketText opens every ticket body and is the query text for dedup.
func ticketText(review domain.Review) string {
	return fmt.Sprintf("Ticket created from %s review %s\n\n%s", review.Source.DisplayName(), review.URL, review.Text)
}

func promptInput(review domain.Review) string {
	return ticketTitle(review) + "\n" + ticketText(review)
}
