package triage

import (
	"context"
	"errors"
	"log"
	"reviewbot/internal/domain"
)

// MultiRecorder hands each run to every recorder and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordRun(ctx context.Context, run domain.RunRecord, outcomes []domain.OutcomeRecord) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.RecordRun(ctx, run, outcomes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunRecord flattens a report into its ledger row.
func (rep *Report) RunRecord() domain.RunRecord {
	a := rep.Aggregate
	if a == nil {
		a = newAggregate()
	}
	mean, _ := a.MeanSentiment()
	return domain.RunRecord{
		ID:               rep.RunID,
		Source:           rep.Source,
		Parameter:        rep.Parameter,
		RequestedCount:   rep.Count,
		Fetched:          rep.Fetched,
		Spam:             a.Spam,
		NSFW:             a.NSFW,
		AIGenerated:      a.AIGenerated,
		Duplicates:       a.Duplicates,
		Unclassified:     a.Unclassified,
		Bugs:             a.Bucket(domain.CategoryBug).Count,
		FeatureRequests:  a.Bucket(domain.CategoryFeatureRequest).Count,
		Questions:        a.Bucket(domain.CategoryQuestion).Count,
		Feedback:         a.Bucket(domain.CategoryFeedback).Count,
		TicketsCreated:   a.TicketsCreated,
		AverageSentiment: mean,
		SentimentSamples: a.SentimentSamples,
		Cancelled:        rep.Cancelled,
		StartedAt:        rep.StartedAt,
		FinishedAt:       rep.FinishedAt,
	}
}

// record hands the finished run to the recorder. Failures never affect the run.
func (r *run) record(ctx context.Context) {
	if r.p.deps.Recorder == nil {
		return
	}
	callCtx, cancel := r.callContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := r.p.deps.Recorder.RecordRun(callCtx, r.report.RunRecord(), r.report.Outcomes); err != nil {
		log.Printf("triage record run=%s failed (non-fatal): %v", r.report.RunID, err)
	}
}
