package events

import (
	"context"
	"errors"
	"reviewbot/internal/domain"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tidwall/gjson"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testRun() (domain.RunRecord, []domain.OutcomeRecord) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	run := domain.RunRecord{
		ID:             "run-42",
		Source:         domain.SourceAppStore,
		Parameter:      "2",
		Fetched:        2,
		Duplicates:     1,
		TicketsCreated: 1,
		StartedAt:      now,
		FinishedAt:     now.Add(time.Minute),
	}
	outcomes := []domain.OutcomeRecord{
		{RunID: "run-42", ReviewID: "a", Source: domain.SourceAppStore, Category: domain.CategoryBug, Outcome: domain.OutcomeTicketed, TicketID: "TKT-9", Severity: domain.SeverityMedium, RecordedAt: now},
		{RunID: "run-42", ReviewID: "b", Source: domain.SourceAppStore, Category: domain.CategoryBug, Outcome: domain.OutcomeDuplicate, RecordedAt: now},
	}
	return run, outcomes
}

func TestRecordRunPublishesRunThenOutcomes(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "outcomes"}
	run, outcomes := testRun()

	if err := p.RecordRun(context.Background(), run, outcomes); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}
	for _, m := range w.msgs {
		if string(m.Key) != "run-42" {
			t.Fatalf("expected every message keyed by run id, got %q", m.Key)
		}
	}

	first := string(w.msgs[0].Value)
	if gjson.Get(first, "type").String() != "triage_run" || gjson.Get(first, "duplicates").Int() != 1 || gjson.Get(first, "source").String() != "appstore" {
		t.Fatalf("unexpected run payload: %s", first)
	}
	if gjson.Get(first, "started_at").String() != "2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected started_at: %s", first)
	}

	ticketed := string(w.msgs[1].Value)
	if gjson.Get(ticketed, "ticket_id").String() != "TKT-9" || gjson.Get(ticketed, "outcome").String() != "ticketed" {
		t.Fatalf("unexpected outcome payload: %s", ticketed)
	}
	dup := string(w.msgs[2].Value)
	if gjson.Get(dup, "ticket_id").Exists() {
		t.Fatalf("empty ticket id should be omitted: %s", dup)
	}
}

func TestRecordRunWrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Publisher{writer: w, topic: "outcomes"}
	run, outcomes := testRun()

	err := p.RecordRun(context.Background(), run, outcomes)
	if err == nil || !strings.Contains(err.Error(), "broker down") || !strings.Contains(err.Error(), "run-42") {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close err=%v closed=%v", err, w.closed)
	}
}
