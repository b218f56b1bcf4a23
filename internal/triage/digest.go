package triage

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"strings"
)

const knowledgeGapTitle = "Summary of all questions asked and knowledge gaps known"

// digest posts the end-of-run messages. After cancellation the oracle
// summaries are skipped and the local counters are still posted.
func (r *run) digest(ctx context.Context) {
	cancelled := ctx.Err() != nil
	postCtx := ctx
	if cancelled {
		postCtx = context.WithoutCancel(ctx)
	}

	if mean, ok := r.agg.MeanSentiment(); ok {
		r.post(postCtx, "Overall Average Customer Sentiment Score: "+formatNumber(mean))
	}

	if !cancelled {
		for _, d := range digestPrompts {
			summaries := r.agg.Bucket(d.category).Summaries
			if len(summaries) == 0 {
				log.Printf("triage digest category=%s empty, skipping", d.category)
				continue
			}
			answer, ok := r.summarize(ctx, d.system, strings.Join(summaries, "\n\n"), d.category)
			if ok {
				r.post(ctx, d.prefix+answer)
			}
		}
		r.knowledgeGaps(ctx)
	}

	a := r.agg
	r.post(postCtx, fmt.Sprintf("Spam reviews: %d\nNSFW reviews: %d\nDuplicate reviews: %d\nAI reviews detected: %d",
		a.Spam, a.NSFW, a.Duplicates, a.AIGenerated))
	r.post(postCtx, fmt.Sprintf("Total feedback: %d \n Total bugs: %d \n Total feature Requests: %d \n Total questions: %d",
		a.Bucket(domain.CategoryFeedback).Count, a.Bucket(domain.CategoryBug).Count,
		a.Bucket(domain.CategoryFeatureRequest).Count, a.Bucket(domain.CategoryQuestion).Count))
}

// summarize runs one digest oracle call and returns its "answer" field.
func (r *run) summarize(ctx context.Context, system, joined string, cat domain.Category) (string, bool) {
	fields, err := r.complete(ctx, r.p.deps.Oracle, system, reviewUserPrompt, map[string]string{"review": joined})
	if err != nil {
		log.Printf("triage digest category=%s failed, skipping entry (non-fatal): %v", cat, err)
		return "", false
	}
	answer, ok := fields.String("answer")
	answer = strings.TrimSpace(answer)
	if !ok || answer == "" {
		log.Printf("triage digest category=%s returned no answer, skipping entry", cat)
		return "", false
	}
	return answer, true
}

// knowledgeGaps summarizes the question bucket into one aggregate ticket, or
// a message when configured so.
func (r *run) knowledgeGaps(ctx context.Context) {
	questions := r.agg.Bucket(domain.CategoryQuestion).Summaries
	if len(questions) == 0 {
		log.Printf("triage digest category=%s empty, skipping", domain.CategoryQuestion)
		return
	}
	joined := strings.Join(questions, "\n")
	answer, ok := r.summarize(ctx, knowledgeGapSystemPrompt, joined, domain.CategoryQuestion)
	if !ok {
		return
	}

	if r.p.opts.KnowledgeGapAsMessage {
		r.post(ctx, "Knowledge gaps: "+answer)
		return
	}

	// No samples means a neutral average.
	mean, _ := r.agg.MeanSentiment()
	tax := r.p.opts.Taxonomy
	var tags []string
	for _, tag := range []domain.Tag{r.ev.Source.Tag(), domain.SentimentTag(mean)} {
		if id, ok := tax.ID(tag); ok {
			tags = append(tags, id)
		}
	}
	draft := domain.TicketDraft{
		Title:    knowledgeGapTitle,
		TagIDs:   tags,
		Body:     "🖋️ Knowledge gaps: " + answer + "\n\n💬 Question Summaries List: " + joined,
		Severity: domain.SeverityFromSentiment(mean),
		Owner:    r.p.opts.DefaultOwner,
		Part:     r.p.opts.DefaultPart,
	}

	callCtx, cancel := r.callContext(ctx)
	id, err := r.tk.CreateTicket(callCtx, draft)
	cancel()
	if err != nil {
		log.Printf("triage create knowledge-gap ticket failed (non-fatal): %v", err)
		return
	}
	r.agg.TicketsCreated++
	r.post(context.WithoutCancel(ctx), fmt.Sprintf("Created ticket: <%s> with the summary of all questions asked and knowledge gaps known", id))
}
