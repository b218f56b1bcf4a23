// Package triage turns a batch of app reviews into tickets and digests.
//
// Reviews are processed strictly one at a time: the dedup check for review N
// reads the category bucket that review N-1 has already written.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"time"

	"github.com/google/uuid"
)

// ErrFetch marks a failure to obtain the review list. It is the only error
// Run returns; every other failure is resolved inside its stage.
var ErrFetch = errors.New("fetching reviews")

type ReviewSource interface {
	Fetch(ctx context.Context, req domain.FetchRequest) ([]domain.Review, error)
}

// Oracle returns the JSON fields of a language-model completion. Fields are
// empty when err is non-nil.
type Oracle interface {
	Complete(ctx context.Context, systemPrompt, userPromptTemplate string, vars map[string]string) (domain.Fields, error)
}

type ContentSafety interface {
	Predict(ctx context.Context, text string) (float64, error)
}

type Sentiment interface {
	Score(ctx context.Context, text string) (domain.SentimentScore, error)
}

type Ticketing interface {
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error)
	PostMessage(ctx context.Context, text string, opts domain.PostOptions) (string, error)
}

type Recorder interface {
	RecordRun(ctx context.Context, run domain.RunRecord, outcomes []domain.OutcomeRecord) error
}

// Deps are the collaborators of a Pipeline. SafetyOracle falls back to
// Oracle and Recorder may be nil.
type Deps struct {
	Sources      map[domain.Source]ReviewSource
	Oracle       Oracle
	SafetyOracle Oracle
	Safety       ContentSafety
	Sentiment    Sentiment
	Recorder     Recorder
}

type Options struct {
	AppName               string
	AppIDs                map[domain.Source]string
	Country               string
	Taxonomy              domain.Taxonomy
	AIGeneratedThreshold  float64
	CallTimeout           time.Duration
	VisibilityDelay       time.Duration
	NotifyDuplicates      bool
	KnowledgeGapAsMessage bool
	DefaultOwner          string
	DefaultPart           string
}

type Pipeline struct {
	deps Deps
	opts Options

	now   func() time.Time
	newID func() string
}

func New(deps Deps, opts Options) *Pipeline {
	if deps.SafetyOracle == nil {
		deps.SafetyOracle = deps.Oracle
	}
	if opts.AIGeneratedThreshold <= 0 {
		opts.AIGeneratedThreshold = 0.8
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now, newID: uuid.NewString}
}

// Event is one invocation: a source and the free-text count parameter.
type Event struct {
	Source    domain.Source
	Parameter string
	// Command is the name shown in help text, e.g. "/playstore-reviews".
	Command string
	// InReplyTo threads every message of the run under an existing message.
	InReplyTo string
}

// Report is the result of one Run.
type Report struct {
	RunID      string
	Source     domain.Source
	Parameter  string
	Count      int
	Fetched    int
	Help       bool
	Cancelled  bool
	Aggregate  *Aggregate
	Outcomes   []domain.OutcomeRecord
	Messages   []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// run carries the per-invocation state through the stages.
type run struct {
	p      *Pipeline
	ev     Event
	tk     Ticketing
	agg    *Aggregate
	report *Report
}

// Run processes one event end to end. Only an ErrFetch-wrapped error is
// returned; a help request returns a Report with Help set.
func (p *Pipeline) Run(ctx context.Context, ev Event, tk Ticketing) (*Report, error) {
	r := &run{
		p:   p,
		ev:  ev,
		tk:  tk,
		agg: newAggregate(),
		report: &Report{
			RunID:     p.newID(),
			Source:    ev.Source,
			Parameter: ev.Parameter,
			StartedAt: p.now(),
		},
	}
	r.report.Aggregate = r.agg

	reviews, ok, err := r.intake(ctx)
	if err != nil {
		r.report.FinishedAt = p.now()
		return r.report, err
	}
	if !ok {
		r.report.FinishedAt = p.now()
		return r.report, nil
	}

	for i, review := range reviews {
		if ctx.Err() != nil {
			for _, skipped := range reviews[i:] {
				r.outcome(skipped, domain.CategoryUnclassified, domain.OutcomeSkippedCancelled, "", "", 0, "")
			}
			break
		}
		r.processReview(ctx, review)
	}
	r.report.Cancelled = ctx.Err() != nil

	r.digest(ctx)
	r.report.FinishedAt = p.now()
	r.record(ctx)
	return r.report, nil
}

// RunBatch runs every event in order. A fetch failure ends that event only.
func (p *Pipeline) RunBatch(ctx context.Context, events []Event, tk Ticketing) []*Report {
	reports := make([]*Report, 0, len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		report, err := p.Run(ctx, ev, tk)
		if err != nil {
			log.Printf("triage run source=%s failed (continuing batch): %v", ev.Source, err)
		}
		reports = append(reports, report)
	}
	return reports
}

func (r *run) processReview(ctx context.Context, review domain.Review) {
	verdict, machine := r.screen(ctx, review)
	switch {
	case verdict == verdictSpam:
		r.agg.Spam++
		r.outcome(review, domain.CategoryUnclassified, domain.OutcomeSpam, "", "", 0, "")
		return
	case verdict == verdictNSFW:
		r.agg.NSFW++
		r.outcome(review, domain.CategoryUnclassified, domain.OutcomeNSFW, "", "", 0, "")
		return
	case machine:
		r.agg.AIGenerated++
		r.outcome(review, domain.CategoryUnclassified, domain.OutcomeAIGenerated, "", "", 0, "")
		return
	}
	if r.stopped(ctx, review) {
		return
	}

	cls := r.classify(ctx, review)
	if cls.Category == domain.CategoryUnclassified {
		r.agg.Unclassified++
		r.post(ctx, fmt.Sprintf("Review doesn't fit into any category for %s. Skipping ticket creation.", review.ID))
		r.outcome(review, domain.CategoryUnclassified, domain.OutcomeUnclassified, "", "", 0, "")
		return
	}

	prior := r.agg.Bucket(cls.Category).Summaries
	r.agg.commit(cls.Category, cls.Summary)
	if r.stopped(ctx, review) {
		return
	}

	if r.isDuplicate(ctx, cls.Category, prior, review) {
		r.agg.Duplicates++
		if r.p.opts.NotifyDuplicates {
			r.post(ctx, fmt.Sprintf("Similar issue already flagged for review %s. Skipping ticket creation.", review.ID))
		}
		r.outcome(review, cls.Category, domain.OutcomeDuplicate, "", "", 0, cls.Summary)
		return
	}

	if cls.Category == domain.CategoryQuestion {
		r.outcome(review, cls.Category, domain.OutcomeQuestionCollected, "", "", 0, cls.Summary)
		return
	}
	if r.stopped(ctx, review) {
		return
	}

	enr := r.enrich(ctx, review, cls)
	if r.stopped(ctx, review) {
		return
	}
	r.synthesize(ctx, review, cls, enr)
}

// stopped records a cancelled outcome when ctx is done.
func (r *run) stopped(ctx context.Context, review domain.Review) bool {
	if ctx.Err() == nil {
		return false
	}
	r.outcome(review, domain.CategoryUnclassified, domain.OutcomeSkippedCancelled, "", "", 0, "")
	return true
}

// callContext bounds one external call by the configured timeout.
func (r *run) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.p.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.p.opts.CallTimeout)
}

// post sends a progress message and logs failures. The returned id is empty
// when posting failed.
func (r *run) post(ctx context.Context, text string) string {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	r.report.Messages = append(r.report.Messages, text)
	id, err := r.tk.PostMessage(callCtx, text, domain.PostOptions{
		VisibilityDelay: r.p.opts.VisibilityDelay,
		InReplyTo:       r.ev.InReplyTo,
	})
	if err != nil {
		log.Printf("triage post message failed (non-fatal): %v", err)
		return ""
	}
	return id
}

func (r *run) complete(ctx context.Context, oracle Oracle, system, user string, vars map[string]string) (domain.Fields, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	bound := map[string]string{"app": r.p.opts.AppName}
	for k, v := range vars {
		bound[k] = v
	}
	return oracle.Complete(callCtx, system, user, bound)
}

func (r *run) outcome(review domain.Review, cat domain.Category, o domain.Outcome, ticketID string, sev domain.Severity, sentiment float64, summary string) {
	log.Printf("triage review id=%s source=%s category=%s outcome=%s ticket=%s", review.ID, review.Source, cat, o, ticketID)
	r.report.Outcomes = append(r.report.Outcomes, domain.OutcomeRecord{
		RunID:      r.report.RunID,
		ReviewID:   review.ID,
		ReviewURL:  review.URL,
		Source:     r.ev.Source,
		Category:   cat,
		Outcome:    o,
		TicketID:   ticketID,
		Severity:   sev,
		Sentiment:  sentiment,
		Summary:    summary,
		RecordedAt: r.p.now(),
	})
}
