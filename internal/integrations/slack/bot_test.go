package slackbot

import (
	"context"
	"errors"
	"reviewbot/internal/domain"
	"reviewbot/internal/storage/sqlite"
	"reviewbot/internal/triage"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

type fakeRunner struct {
	mu     sync.Mutex
	events []triage.Event
	run    func(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error)
}

func (f *fakeRunner) Run(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, ev, tk)
	}
	return &triage.Report{Source: ev.Source, Aggregate: &triage.Aggregate{}}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type stubTracker struct {
	drafts []domain.TicketDraft
}

func (s *stubTracker) CreateTicket(_ context.Context, draft domain.TicketDraft) (string, error) {
	s.drafts = append(s.drafts, draft)
	return "TKT-7", nil
}

type recordingMirror struct {
	mu    sync.Mutex
	texts []string
}

func (m *recordingMirror) PostMessage(_ context.Context, text string, _ domain.PostOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return "", nil
}

func triageCmd(command, text, user string) slack.SlashCommand {
	return slack.SlashCommand{Command: command, Text: text, UserID: user, ChannelID: "C_TRIAGE"}
}

func TestChannelMessengerThreadsReplies(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	m := NewChannelMessenger(api, "C1")

	ts, err := m.PostMessage(context.Background(), "hello", domain.PostOptions{InReplyTo: "1699.000001", VisibilityDelay: time.Second})
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if ts == "" {
		t.Fatal("expected message ts")
	}
	posts := mock.byMethod("chat.postMessage")
	if len(posts) != 1 || posts[0].channel != "C1" || posts[0].text != "hello" || posts[0].threadTS != "1699.000001" {
		t.Fatalf("unexpected post: %+v", posts)
	}
}

func TestHandleTriageRunsPipelineInThread(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	tracker := &stubTracker{}
	mirror := &recordingMirror{}
	runner := &fakeRunner{
		run: func(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error) {
			if _, err := tk.PostMessage(ctx, "Fetching reviews from Google Play Store ...", domain.PostOptions{InReplyTo: ev.InReplyTo}); err != nil {
				t.Errorf("PostMessage through fanout failed: %v", err)
			}
			id, err := tk.CreateTicket(ctx, domain.TicketDraft{Title: "crash"})
			if err != nil || id != "TKT-7" {
				t.Errorf("CreateTicket = %q, %v", id, err)
			}
			return &triage.Report{Source: ev.Source, Fetched: 3, Aggregate: &triage.Aggregate{TicketsCreated: 1}}, nil
		},
	}
	cfg := Config{PlayStoreAppID: "com.example"}
	bot := NewBot(cfg, api, nil, runner, tracker, mirror)

	bot.handleSlashCommand(triageCmd(cmdPlayStore, "3", "U0ANYONE1"))

	if runner.calls() != 1 {
		t.Fatalf("expected one run, got %d", runner.calls())
	}
	ev := runner.events[0]
	if ev.Source != domain.SourcePlayStore || ev.Parameter != "3" || ev.Command != cmdPlayStore {
		t.Fatalf("unexpected event: %+v", ev)
	}

	posts := mock.byMethod("chat.postMessage")
	if len(posts) != 2 {
		t.Fatalf("expected header and one progress post, got %+v", posts)
	}
	if !strings.Contains(posts[0].text, "requested by <@U0ANYONE1>") || !strings.Contains(posts[0].blocks, actionCancelRun) {
		t.Fatalf("unexpected header post: %+v", posts[0])
	}
	if ev.InReplyTo == "" || posts[1].threadTS != ev.InReplyTo {
		t.Fatalf("progress should be threaded under header ts=%q, got %+v", ev.InReplyTo, posts[1])
	}
	if len(mirror.texts) != 1 {
		t.Fatalf("mirror should receive progress, got %q", mirror.texts)
	}
	if len(tracker.drafts) != 1 {
		t.Fatalf("expected one ticket, got %d", len(tracker.drafts))
	}

	updates := mock.byMethod("chat.update")
	if len(updates) != 1 || updates[0].ts != ev.InReplyTo || !strings.Contains(updates[0].text, "Finished: 3 reviews, 1 tickets.") {
		t.Fatalf("unexpected header update: %+v", updates)
	}
	if strings.Contains(updates[0].blocks, actionCancelRun) {
		t.Fatalf("cancel button should be removed after the run: %s", updates[0].blocks)
	}
	if bot.runs.active() != 0 {
		t.Fatal("run should be unregistered after completion")
	}
}

func TestHandleTriageDeniesNonOperator(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	runner := &fakeRunner{}
	cfg := Config{PlayStoreAppID: "com.example", TriageOperators: []string{"UALLOWED01"}}
	bot := NewBot(cfg, api, nil, runner, &stubTracker{})

	bot.handleSlashCommand(triageCmd(cmdPlayStore, "5", "U0SOMEONE"))

	if runner.calls() != 0 {
		t.Fatal("runner must not be called for a non-operator")
	}
	eph := mock.byMethod("chat.postEphemeral")
	if len(eph) != 1 || !strings.Contains(eph[0].text, "only triage operators") {
		t.Fatalf("expected denial ephemeral, got %+v", eph)
	}
}

func TestHandleTriageResolvesOperatorByName(t *testing.T) {
	api, _ := newMockSlackAPI(t)
	runner := &fakeRunner{}
	cfg := Config{AppStoreID: "123", TriageOperators: []string{"@Bob Display"}}
	bot := NewBot(cfg, api, nil, runner, &stubTracker{})

	bot.handleSlashCommand(triageCmd(cmdAppStore, "", "U0BOB0001"))

	if runner.calls() != 1 {
		t.Fatalf("expected operator resolved by display name to run triage, calls=%d", runner.calls())
	}
	if runner.events[0].Source != domain.SourceAppStore {
		t.Fatalf("unexpected source: %s", runner.events[0].Source)
	}
}

func TestHandleTriageHelpAndUnconfiguredSource(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	runner := &fakeRunner{}
	bot := NewBot(Config{PlayStoreAppID: "com.example"}, api, nil, runner, &stubTracker{})

	bot.handleSlashCommand(triageCmd(cmdPlayStore, "help", "U0ANYONE1"))
	bot.handleSlashCommand(triageCmd(cmdAppStore, "5", "U0ANYONE1"))

	if runner.calls() != 0 {
		t.Fatal("neither help nor an unconfigured source should start a run")
	}
	eph := mock.byMethod("chat.postEphemeral")
	if len(eph) != 2 {
		t.Fatalf("expected 2 ephemeral replies, got %+v", eph)
	}
	if !strings.Contains(eph[0].text, "Usage: /playstore-reviews <number_of_reviews_to_fetch>") {
		t.Fatalf("unexpected help text: %q", eph[0].text)
	}
	if !strings.Contains(eph[1].text, "Apple App Store is not configured") {
		t.Fatalf("unexpected unconfigured reply: %q", eph[1].text)
	}
}

func TestHandleTriageFetchFailureUpdatesHeader(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	runner := &fakeRunner{
		run: func(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error) {
			return &triage.Report{Source: ev.Source}, triage.ErrFetch
		},
	}
	bot := NewBot(Config{PlayStoreAppID: "com.example"}, api, nil, runner, &stubTracker{})

	bot.handleSlashCommand(triageCmd(cmdPlayStore, "10", "U0ANYONE1"))

	updates := mock.byMethod("chat.update")
	if len(updates) != 1 || !strings.Contains(updates[0].text, "Failed: could not fetch reviews.") {
		t.Fatalf("unexpected header update: %+v", updates)
	}
}

func TestCancelButtonCancelsRunningTriage(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	started := make(chan struct{})
	runner := &fakeRunner{
		run: func(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error) {
			close(started)
			<-ctx.Done()
			return &triage.Report{
				Source:    ev.Source,
				Fetched:   4,
				Cancelled: true,
				Outcomes: []domain.OutcomeRecord{
					{Outcome: domain.OutcomeTicketed},
					{Outcome: domain.OutcomeSkippedCancelled},
					{Outcome: domain.OutcomeSkippedCancelled},
					{Outcome: domain.OutcomeSkippedCancelled},
				},
			}, nil
		},
	}
	bot := NewBot(Config{PlayStoreAppID: "com.example"}, api, nil, runner, &stubTracker{})

	done := make(chan struct{})
	go func() {
		bot.handleSlashCommand(triageCmd(cmdPlayStore, "4", "U0ANYONE1"))
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	var key string
	bot.runs.mu.Lock()
	for k := range bot.runs.cancels {
		key = k
	}
	bot.runs.mu.Unlock()
	if key == "" {
		t.Fatal("expected the run to be registered")
	}

	var cb slack.InteractionCallback
	cb.Type = slack.InteractionTypeBlockActions
	cb.User.ID = "U0ANYONE1"
	cb.Channel.ID = "C_TRIAGE"
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{ActionID: actionCancelRun, Value: key}}
	bot.handleInteraction(cb)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	updates := mock.byMethod("chat.update")
	if len(updates) != 1 || !strings.Contains(updates[0].text, "Cancelled after 1 of 4 reviews.") {
		t.Fatalf("unexpected header update: %+v", updates)
	}

	// A second click finds nothing to cancel.
	bot.handleInteraction(cb)
	eph := mock.byMethod("chat.postEphemeral")
	if len(eph) != 2 || !strings.Contains(eph[1].text, "already finished") {
		t.Fatalf("unexpected ephemeral replies: %+v", eph)
	}
}

func TestHandleStats(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	db := newTestDB(t)
	now := time.Now().UTC()
	ledger := sqlite.NewLedger(db)
	err := ledger.RecordRun(context.Background(), domain.RunRecord{
		ID: "run-1", Source: domain.SourcePlayStore, Fetched: 2, TicketsCreated: 1,
		AverageSentiment: 0.5, StartedAt: now.Add(-time.Hour), FinishedAt: now,
	}, []domain.OutcomeRecord{
		{RunID: "run-1", ReviewID: "a", Source: domain.SourcePlayStore, Outcome: domain.OutcomeTicketed, RecordedAt: now},
		{RunID: "run-1", ReviewID: "b", Source: domain.SourcePlayStore, Outcome: domain.OutcomeDuplicate, RecordedAt: now},
	})
	if err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	bot := NewBot(Config{Location: time.UTC}, api, db, &fakeRunner{}, &stubTracker{})
	bot.handleSlashCommand(triageCmd(cmdStats, "", "U0ANYONE1"))
	bot.handleSlashCommand(triageCmd(cmdStats, "abc", "U0ANYONE1"))

	eph := mock.byMethod("chat.postEphemeral")
	if len(eph) != 2 {
		t.Fatalf("expected 2 ephemeral replies, got %d", len(eph))
	}
	for _, want := range []string{"last 7 days", "- Runs: 1", "- Tickets: 1", "- Ticketed: 1", "- Duplicates: 1", "Google Play Store: 2 reviews, 1 tickets, avg sentiment 0.50"} {
		if !strings.Contains(eph[0].text, want) {
			t.Fatalf("stats missing %q:\n%s", want, eph[0].text)
		}
	}
	if !strings.HasPrefix(eph[1].text, "Usage: /review-stats") {
		t.Fatalf("unexpected usage reply: %q", eph[1].text)
	}
}

func TestHandleHelpListsCommands(t *testing.T) {
	api, mock := newMockSlackAPI(t)
	bot := NewBot(Config{TriageOperators: []string{"bob"}}, api, nil, &fakeRunner{}, &stubTracker{})

	bot.handleSlashCommand(triageCmd(cmdHelp, "", "U0ANYONE1"))

	eph := mock.byMethod("chat.postEphemeral")
	if len(eph) != 1 {
		t.Fatalf("expected help reply, got %+v", eph)
	}
	for _, want := range []string{cmdPlayStore, cmdAppStore, cmdStats, "(1-100, default 10)", "(1-50, default 10)", "limited to configured operators"} {
		if !strings.Contains(eph[0].text, want) {
			t.Fatalf("help missing %q:\n%s", want, eph[0].text)
		}
	}
}

func TestRunFooter(t *testing.T) {
	header := "Review triage for Apple App Store requested by <@U1>."
	tests := []struct {
		name   string
		report *triage.Report
		err    error
		want   string
	}{
		{"fetch error", nil, errors.New("boom"), header + " Failed: could not fetch reviews."},
		{"nil report", nil, nil, header + " Finished."},
		{"no aggregate", &triage.Report{Fetched: 2}, nil, header + " Finished: 2 reviews, 0 tickets."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runFooter(header, tt.report, tt.err); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLikelySlackID(t *testing.T) {
	tests := map[string]bool{
		"U01ABCDEF2": true,
		"W0123ABCDE": true,
		"U123":       false,
		"bob":        false,
		"u01abcdef2": false,
		"C01ABCDEF2": false,
		"U_ALLOWED1": false,
	}
	for in, want := range tests {
		if got := isLikelySlackID(in); got != want {
			t.Fatalf("isLikelySlackID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveUserIDs(t *testing.T) {
	api, _ := newMockSlackAPI(t)

	ids, unresolved, err := resolveUserIDs(api, []string{"U01ABCDEF2", " bob ", "Bob Real", "nobody", "", "U01ABCDEF2"})
	if err != nil {
		t.Fatalf("resolveUserIDs failed: %v", err)
	}
	if strings.Join(ids, ",") != "U01ABCDEF2,U0BOB0001" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if len(unresolved) != 1 || unresolved[0] != "nobody" {
		t.Fatalf("unexpected unresolved: %v", unresolved)
	}
}
