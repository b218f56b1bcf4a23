// Package schedule runs triage batches on a cron schedule and posts a
// one-line summary to the report channel.
package schedule

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/config"
	"reviewbot/internal/domain"
	"reviewbot/internal/triage"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config = config.Config

type BatchRunner interface {
	RunBatch(ctx context.Context, events []triage.Event, tk triage.Ticketing) []*triage.Report
}

// BuildEvents turns auto_triage_sources into one event per source. With no
// sources listed every enabled source is triaged.
func BuildEvents(cfg Config) []triage.Event {
	var sources []domain.Source
	for _, s := range cfg.AutoTriageSources {
		src, err := domain.ParseSource(s)
		if err != nil {
			log.Printf("auto-triage skipped source=%q: %v", s, err)
			continue
		}
		sources = append(sources, src)
	}
	if len(cfg.AutoTriageSources) == 0 {
		sources = cfg.EnabledSources()
	}

	events := make([]triage.Event, 0, len(sources))
	for _, src := range sources {
		events = append(events, triage.Event{
			Source:    src,
			Parameter: cfg.AutoTriageCount,
			Command:   "/" + string(src) + "-reviews",
		})
	}
	return events
}

// FormatBatchSummary returns a human-readable summary of a batch.
func FormatBatchSummary(reports []*triage.Report) string {
	if len(reports) == 0 {
		return "no sources triaged."
	}
	parts := make([]string, 0, len(reports))
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		name := rep.Source.DisplayName()
		if rep.Fetched == 0 {
			parts = append(parts, fmt.Sprintf("%s: nothing fetched", name))
			continue
		}
		tickets, dups, filtered := 0, 0, 0
		if a := rep.Aggregate; a != nil {
			tickets = a.TicketsCreated
			dups = a.Duplicates
			filtered = a.Spam + a.NSFW + a.AIGenerated
		}
		part := fmt.Sprintf("%s: %d reviews, %d tickets, %d duplicates, %d filtered",
			name, rep.Fetched, tickets, dups, filtered)
		if rep.Cancelled {
			part += " (cancelled)"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

// Parse accepts a standard 5-field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// StartAutoTriageScheduler runs the batch at every tick of
// auto_triage_schedule until ctx is done.
// Examples: "0 9 * * *" (daily 9am), "0 9 * * 1-5" (weekdays 9am).
func StartAutoTriageScheduler(ctx context.Context, cfg Config, runner BatchRunner, tk triage.Ticketing) {
	expr := strings.TrimSpace(cfg.AutoTriageSchedule)
	if expr == "" {
		log.Println("Auto-triage disabled (auto_triage_schedule not set)")
		return
	}
	sched, err := Parse(expr)
	if err != nil {
		log.Printf("Invalid auto_triage_schedule '%s': %v, auto-triage disabled", expr, err)
		return
	}
	events := BuildEvents(cfg)
	if len(events) == 0 {
		log.Println("Auto-triage disabled: no review source to triage")
		return
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	log.Printf("Auto-triage scheduled (cron: %s) for %d source(s)", expr, len(events))

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-triage at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Auto-triage scheduler stopped")
				return
			case <-timer.C:
			}

			runOnce(ctx, runner, events, tk)
		}
	}()
}

func runOnce(ctx context.Context, runner BatchRunner, events []triage.Event, tk triage.Ticketing) string {
	reports := runner.RunBatch(ctx, events, tk)
	summary := FormatBatchSummary(reports)
	log.Printf("Auto-triage complete: %s", summary)

	if _, err := tk.PostMessage(context.WithoutCancel(ctx), "Auto-triage complete: "+summary, domain.PostOptions{}); err != nil {
		log.Printf("Auto-triage post error: %v", err)
	}
	return summary
}
