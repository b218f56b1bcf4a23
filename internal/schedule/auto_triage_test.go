package schedule

import (
	"context"
	"reviewbot/internal/domain"
	"reviewbot/internal/triage"
	"strings"
	"testing"
	"time"
)

func TestBuildEventsDefaultsToEnabledSources(t *testing.T) {
	cfg := Config{PlayStoreAppID: "com.example", AppStoreID: "123", AutoTriageCount: "5"}
	events := BuildEvents(cfg)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Source != domain.SourcePlayStore || events[0].Parameter != "5" || events[0].Command != "/playstore-reviews" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Source != domain.SourceAppStore {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestBuildEventsHonorsListedSources(t *testing.T) {
	cfg := Config{
		PlayStoreAppID:    "com.example",
		AppStoreID:        "123",
		AutoTriageSources: []string{"App_Store", "windows"},
		AutoTriageCount:   "20",
	}
	events := BuildEvents(cfg)
	if len(events) != 1 || events[0].Source != domain.SourceAppStore || events[0].Parameter != "20" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFormatBatchSummary(t *testing.T) {
	if got := FormatBatchSummary(nil); got != "no sources triaged." {
		t.Errorf("got %q", got)
	}

	reports := []*triage.Report{
		{
			Source:    domain.SourcePlayStore,
			Fetched:   10,
			Aggregate: &triage.Aggregate{TicketsCreated: 4, Duplicates: 2, Spam: 1, AIGenerated: 1},
		},
		{Source: domain.SourceAppStore, Count: 10},
		{Source: domain.SourceAppStore, Fetched: 3, Cancelled: true},
	}
	got := FormatBatchSummary(reports)
	want := "Google Play Store: 10 reviews, 4 tickets, 2 duplicates, 2 filtered; " +
		"Apple App Store: nothing fetched; " +
		"Apple App Store: 3 reviews, 0 tickets, 0 duplicates, 0 filtered (cancelled)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	sched, err := Parse("0 9 * * 1-5")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// Saturday 2026-03-07 rolls over to Monday 09:00.
	from := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}

	if _, err := Parse("every morning"); err == nil {
		t.Fatal("expected invalid expression to fail")
	}
	if _, err := Parse("0 0 9 * * *"); err == nil {
		t.Fatal("expected 6-field expression to fail")
	}
}

type stubRunner struct {
	events []triage.Event
}

func (s *stubRunner) RunBatch(_ context.Context, events []triage.Event, _ triage.Ticketing) []*triage.Report {
	s.events = events
	return []*triage.Report{{Source: domain.SourcePlayStore, Fetched: 1, Aggregate: &triage.Aggregate{TicketsCreated: 1}}}
}

type captureTicketing struct {
	texts []string
}

func (c *captureTicketing) CreateTicket(context.Context, domain.TicketDraft) (string, error) {
	return "", nil
}

func (c *captureTicketing) PostMessage(_ context.Context, text string, _ domain.PostOptions) (string, error) {
	c.texts = append(c.texts, text)
	return "ts", nil
}

func TestRunOncePostsSummary(t *testing.T) {
	runner := &stubRunner{}
	tk := &captureTicketing{}
	events := []triage.Event{{Source: domain.SourcePlayStore, Parameter: "1"}}

	summary := runOnce(context.Background(), runner, events, tk)
	if len(runner.events) != 1 {
		t.Fatalf("runner did not receive events: %+v", runner.events)
	}
	if len(tk.texts) != 1 || !strings.HasPrefix(tk.texts[0], "Auto-triage complete: ") || !strings.Contains(tk.texts[0], summary) {
		t.Fatalf("unexpected posts: %q", tk.texts)
	}
}

func TestStartAutoTriageSchedulerDisabled(t *testing.T) {
	runner := &stubRunner{}
	tk := &captureTicketing{}
	// Neither call may start a goroutine that runs the batch.
	StartAutoTriageScheduler(context.Background(), Config{PlayStoreAppID: "x"}, runner, tk)
	StartAutoTriageScheduler(context.Background(), Config{AutoTriageSchedule: "bogus", PlayStoreAppID: "x"}, runner, tk)
	if runner.events != nil || len(tk.texts) != 0 {
		t.Fatal("disabled scheduler must not run")
	}
}
