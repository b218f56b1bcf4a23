package triage

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"strconv"
)

// synthesize builds the ticket draft for a ticketed category and creates it.
// A creation failure is logged and the review is dropped.
func (r *run) synthesize(ctx context.Context, review domain.Review, cls Classification, enr Enrichment) {
	tax := r.p.opts.Taxonomy
	var tags []string
	for _, tag := range []domain.Tag{cls.Category.Tag(), review.Source.Tag(), domain.SentimentTag(enr.Sentiment.Value)} {
		if id, ok := tax.ID(tag); ok {
			tags = append(tags, id)
		}
	}

	draft := domain.TicketDraft{
		Title:  ticketTitle(review),
		TagIDs: tags,
		Body:   ticketBody(review, cls, enr),
		Owner:  r.p.opts.DefaultOwner,
		Part:   r.p.opts.DefaultPart,
	}
	if cls.Category == domain.CategoryFeedback {
		draft.Severity = domain.SeverityFromSentiment(enr.Sentiment.Value)
	} else {
		draft.Severity = domain.SeverityFromScore(enr.Severity)
	}

	callCtx, cancel := r.callContext(ctx)
	id, err := r.tk.CreateTicket(callCtx, draft)
	cancel()
	if err != nil {
		log.Printf("triage create ticket review=%s category=%s failed (non-fatal): %v", review.ID, cls.Category, err)
		r.outcome(review, cls.Category, domain.OutcomeTicketFailed, "", draft.Severity, enr.Sentiment.Value, cls.Summary)
		return
	}
	r.agg.TicketsCreated++
	r.outcome(review, cls.Category, domain.OutcomeTicketed, id, draft.Severity, enr.Sentiment.Value, cls.Summary)
	// The ticket exists, so its confirmation survives a cancel.
	r.post(context.WithoutCancel(ctx), fmt.Sprintf("Created ticket: <%s> and it is categorized as %s", id, cls.Category))
}

func ticketBody(review domain.Review, cls Classification, enr Enrichment) string {
	body := ticketText(review)
	switch cls.Category {
	case domain.CategoryBug:
		body += "\n\n🐛 Bug Business Impact: \n" + enr.Impact +
			"\n\n💡 Bug Solution: \n" + enr.Solution +
			"\n\n🔴 Bug severity: " + formatNumber(enr.Severity) +
			"\n\n💬 Customer Sentiment: " + enr.Sentiment.Label
	case domain.CategoryFeatureRequest:
		body += "\n\n💡 Request Summary: \n" + cls.Summary +
			"\n\n💼 Feature Business Impact: \n" + enr.Impact +
			"\n\n🔴 Feature importance: " + formatNumber(enr.Severity) +
			"\n\n💬 Customer Sentiment: " + enr.Sentiment.Label
	case domain.CategoryFeedback:
		body += "\n\n🖋️ Review Summary: " + cls.Summary +
			"\n\n💬 Feedback Sentiment: " + enr.Sentiment.Label +
			"\n\n🔴 Sentiment Score: " + formatNumber(enr.Sentiment.Value)
	}
	return body
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
