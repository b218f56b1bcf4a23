// Package slackbot exposes review triage as Slack slash commands over
// Socket Mode.
package slackbot

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"reviewbot/internal/storage/sqlite"
	"reviewbot/internal/ticketing"
	"reviewbot/internal/triage"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	cmdPlayStore = "/playstore-reviews"
	cmdAppStore  = "/appstore-reviews"
	cmdStats     = "/review-stats"
	cmdHelp      = "/reviewbot-help"

	actionCancelRun = "triage_cancel_run"

	defaultStatsDays = 7
	recentRunsShown  = 5
)

type Bot struct {
	cfg     Config
	api     *slack.Client
	db      *sql.DB
	runner  Runner
	tracker ticketing.Tracker
	mirrors []ticketing.Messenger
	runs    *runRegistry
	base    context.Context
}

// NewBot wires the handlers. db may be nil, which disables /review-stats.
// Mirrors receive a copy of every progress message.
func NewBot(cfg Config, api *slack.Client, db *sql.DB, runner Runner, tracker ticketing.Tracker, mirrors ...ticketing.Messenger) *Bot {
	return &Bot{
		cfg:     cfg,
		api:     api,
		db:      db,
		runner:  runner,
		tracker: tracker,
		mirrors: mirrors,
		runs:    newRunRegistry(),
		base:    context.Background(),
	}
}

// Start blocks until ctx is done or the Socket Mode connection fails.
// Runs started from commands are cancelled with ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.base = ctx
	client := socketmode.New(b.api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go b.handleSlashCommand(cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go b.handleEventsAPI(eventsAPIEvent)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go b.handleInteraction(callback)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.RunContext(ctx)
}

func (b *Bot) handleSlashCommand(cmd slack.SlashCommand) {
	switch cmd.Command {
	case cmdPlayStore:
		b.handleTriage(cmd, domain.SourcePlayStore)
	case cmdAppStore:
		b.handleTriage(cmd, domain.SourceAppStore)
	case cmdStats:
		b.handleStats(cmd)
	case cmdHelp:
		b.handleHelp(cmd)
	}
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ev)
	}
}

func (b *Bot) handleMemberJoined(ev *slackevents.MemberJoinedChannelEvent) {
	if b.cfg.ReportChannelID != "" && ev.Channel != b.cfg.ReportChannelID {
		return
	}
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)

	intro := "Welcome! I'm ReviewBot. I read app store reviews, file tickets for bugs, feature requests and feedback, and post a digest when I'm done.\n\n" +
		"• `" + cmdPlayStore + " <count>` or `" + cmdAppStore + " <count>`: triage the latest reviews\n" +
		"• `" + cmdHelp + "`: see all commands"
	_, _, err := b.api.PostMessage(ev.Channel,
		slack.MsgOptionText(intro, false),
		slack.MsgOptionPostEphemeral(ev.User),
	)
	if err != nil {
		log.Printf("member-joined intro error user=%s channel=%s: %v", ev.User, ev.Channel, err)
	}
}

func (b *Bot) handleTriage(cmd slack.SlashCommand, src domain.Source) {
	allowed, err := isOperator(b.api, b.cfg, cmd.UserID)
	if err != nil {
		log.Printf("triage operator lookup error user=%s (non-fatal): %v", cmd.UserID, err)
	}
	if !allowed {
		postEphemeral(b.api, cmd, "Sorry, only triage operators can use this command.")
		log.Printf("triage denied user=%s source=%s", cmd.UserID, src)
		return
	}
	if !b.cfg.SourceEnabled(src) {
		postEphemeral(b.api, cmd, fmt.Sprintf("%s is not configured for this bot.", src.DisplayName()))
		return
	}
	if triage.ResolveCount(cmd.Text, src.MaxCount()).Help {
		postEphemeral(b.api, cmd, triage.HelpText(src, cmd.Command))
		return
	}

	runKey := uuid.NewString()
	header := fmt.Sprintf("Review triage for %s requested by <@%s>.", src.DisplayName(), cmd.UserID)
	_, ts, err := b.api.PostMessage(cmd.ChannelID,
		slack.MsgOptionText(header, false),
		slack.MsgOptionBlocks(runHeaderBlocks(header, runKey)...),
	)
	if err != nil {
		// Without a header there is no thread; progress goes to the channel.
		log.Printf("triage header post error channel=%s (non-fatal): %v", cmd.ChannelID, err)
		ts = ""
	}

	ctx, cancel := context.WithCancel(b.base)
	b.runs.add(runKey, cancel)
	defer func() {
		b.runs.remove(runKey)
		cancel()
	}()

	tk := &ticketing.Fanout{
		Tracker:    b.tracker,
		Messengers: append([]ticketing.Messenger{NewChannelMessenger(b.api, cmd.ChannelID)}, b.mirrors...),
	}
	ev := triage.Event{
		Source:    src,
		Parameter: cmd.Text,
		Command:   cmd.Command,
		InReplyTo: ts,
	}

	report, runErr := b.runner.Run(ctx, ev, tk)
	if runErr != nil {
		log.Printf("triage run source=%s user=%s error: %v", src, cmd.UserID, runErr)
	}
	if ts == "" {
		return
	}
	footer := runFooter(header, report, runErr)
	_, _, _, err = b.api.UpdateMessage(cmd.ChannelID, ts,
		slack.MsgOptionText(footer, false),
		slack.MsgOptionBlocks(slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, footer, false, false), nil, nil)),
	)
	if err != nil {
		log.Printf("triage header update error channel=%s ts=%s (non-fatal): %v", cmd.ChannelID, ts, err)
	}
}

func runHeaderBlocks(header, runKey string) []slack.Block {
	text := slack.NewTextBlockObject(slack.MarkdownType, header, false, false)
	cancelBtn := slack.NewButtonBlockElement(actionCancelRun, runKey,
		slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false))
	cancelBtn.Style = slack.StyleDanger
	return []slack.Block{
		slack.NewSectionBlock(text, nil, nil),
		slack.NewActionBlock("triage_run_actions", cancelBtn),
	}
}

// runFooter replaces the header once the run is over.
func runFooter(header string, report *triage.Report, runErr error) string {
	switch {
	case runErr != nil:
		return header + " Failed: could not fetch reviews."
	case report == nil:
		return header + " Finished."
	case report.Cancelled:
		return header + fmt.Sprintf(" Cancelled after %d of %d reviews.", processedCount(report), report.Fetched)
	}
	tickets := 0
	if report.Aggregate != nil {
		tickets = report.Aggregate.TicketsCreated
	}
	return header + fmt.Sprintf(" Finished: %d reviews, %d tickets.", report.Fetched, tickets)
}

func processedCount(report *triage.Report) int {
	n := 0
	for _, o := range report.Outcomes {
		if o.Outcome != domain.OutcomeSkippedCancelled {
			n++
		}
	}
	return n
}

func (b *Bot) handleInteraction(cb slack.InteractionCallback) {
	if cb.Type != slack.InteractionTypeBlockActions {
		return
	}
	for _, act := range cb.ActionCallback.BlockActions {
		if act == nil || act.ActionID != actionCancelRun {
			continue
		}
		allowed, err := isOperator(b.api, b.cfg, cb.User.ID)
		if err != nil {
			log.Printf("triage cancel operator lookup error user=%s (non-fatal): %v", cb.User.ID, err)
		}
		if !allowed {
			postEphemeralTo(b.api, cb.Channel.ID, cb.User.ID, "Sorry, only triage operators can cancel a run.")
			continue
		}
		if b.runs.cancel(act.Value) {
			log.Printf("triage run cancelled key=%s user=%s", act.Value, cb.User.ID)
			postEphemeralTo(b.api, cb.Channel.ID, cb.User.ID, "Cancelling triage run. A partial digest will follow.")
		} else {
			postEphemeralTo(b.api, cb.Channel.ID, cb.User.ID, "That triage run has already finished.")
		}
	}
}

func (b *Bot) handleStats(cmd slack.SlashCommand) {
	if b.db == nil {
		postEphemeral(b.api, cmd, "Run history is not available.")
		return
	}
	days := defaultStatsDays
	if arg := strings.TrimSpace(cmd.Text); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			postEphemeral(b.api, cmd, "Usage: "+cmdStats+" [days]")
			return
		}
		days = n
	}

	loc := b.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	since := time.Now().In(loc).AddDate(0, 0, -days)
	stats, err := sqlite.GetOutcomeStats(b.db, since)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error loading stats: %v", err))
		log.Printf("review-stats error: %v", err)
		return
	}
	runs, err := sqlite.GetRecentRuns(b.db, recentRunsShown)
	if err != nil {
		log.Printf("review-stats recent runs error (non-fatal): %v", err)
	}

	postEphemeral(b.api, cmd, formatStats(days, stats, runs, loc))
	log.Printf("review-stats sent user=%s days=%d", cmd.UserID, days)
}

var statsOutcomeOrder = []struct {
	outcome domain.Outcome
	label   string
}{
	{domain.OutcomeTicketed, "Ticketed"},
	{domain.OutcomeDuplicate, "Duplicates"},
	{domain.OutcomeQuestionCollected, "Questions collected"},
	{domain.OutcomeUnclassified, "Unclassified"},
	{domain.OutcomeSpam, "Spam"},
	{domain.OutcomeNSFW, "NSFW"},
	{domain.OutcomeAIGenerated, "AI generated"},
	{domain.OutcomeTicketFailed, "Ticket failures"},
	{domain.OutcomeSkippedCancelled, "Skipped (cancelled)"},
}

func formatStats(days int, stats sqlite.OutcomeStats, runs []domain.RunRecord, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Review Triage (last %d days)*\n", days))
	sb.WriteString(fmt.Sprintf("- Runs: %d\n", stats.Runs))
	sb.WriteString(fmt.Sprintf("- Reviews: %d\n", stats.Reviews))
	sb.WriteString(fmt.Sprintf("- Tickets: %d\n", stats.Tickets))

	if len(stats.Outcomes) > 0 {
		sb.WriteString("\n*Outcomes*\n")
		for _, o := range statsOutcomeOrder {
			if n := stats.Outcomes[o.outcome]; n > 0 {
				sb.WriteString(fmt.Sprintf("- %s: %d\n", o.label, n))
			}
		}
	}

	if len(runs) > 0 {
		sb.WriteString("\n*Recent Runs*\n")
		for _, r := range runs {
			line := fmt.Sprintf("- %s %s: %d reviews, %d tickets, avg sentiment %.2f",
				r.StartedAt.In(loc).Format("Jan 2 15:04"), r.Source.DisplayName(), r.Fetched, r.TicketsCreated, r.AverageSentiment)
			if r.Cancelled {
				line += " (cancelled)"
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

func (b *Bot) handleHelp(cmd slack.SlashCommand) {
	lines := []string{
		"*ReviewBot Commands*",
		"",
		fmt.Sprintf("`%s <count>`: Triage the latest %s reviews (1-%d, default 10).", cmdPlayStore, domain.SourcePlayStore.DisplayName(), domain.SourcePlayStore.MaxCount()),
		fmt.Sprintf("`%s <count>`: Triage the latest %s reviews (1-%d, default 10).", cmdAppStore, domain.SourceAppStore.DisplayName(), domain.SourceAppStore.MaxCount()),
		fmt.Sprintf("`%s [days]`: Show triage outcomes for the last N days (default %d).", cmdStats, defaultStatsDays),
		fmt.Sprintf("`%s`: Show this help.", cmdHelp),
		"",
		"Pass `help` to a triage command for its usage.",
	}
	if len(b.cfg.TriageOperators) > 0 {
		lines = append(lines, "Triage commands are limited to configured operators.")
	}
	postEphemeral(b.api, cmd, strings.Join(lines, "\n"))
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	postEphemeralTo(api, cmd.ChannelID, cmd.UserID, text)
}

func postEphemeralTo(api *slack.Client, channelID, userID, text string) {
	_, err := api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}
