package slackbot

import (
	"context"
	"reviewbot/internal/config"
	"reviewbot/internal/triage"
)

type Config = config.Config

// Runner is satisfied by *triage.Pipeline.
type Runner interface {
	Run(ctx context.Context, ev triage.Event, tk triage.Ticketing) (*triage.Report, error)
}
