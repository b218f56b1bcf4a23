// Package ticketing combines one ticket tracker with the channels that
// carry run progress.
package ticketing

import (
	"context"
	"errors"
	"log"
	"reviewbot/internal/domain"
)

type Tracker interface {
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error)
}

type Messenger interface {
	PostMessage(ctx context.Context, text string, opts domain.PostOptions) (string, error)
}

// Fanout creates tickets on Tracker and posts each message to every
// messenger. The first messenger is primary: its id and error are returned.
// The rest are mirrors and only log failures.
type Fanout struct {
	Tracker    Tracker
	Messengers []Messenger
}

func (f *Fanout) CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	if f.Tracker == nil {
		return "", errors.New("no ticket tracker configured")
	}
	return f.Tracker.CreateTicket(ctx, draft)
}

func (f *Fanout) PostMessage(ctx context.Context, text string, opts domain.PostOptions) (string, error) {
	if len(f.Messengers) == 0 {
		return "", errors.New("no messenger configured")
	}
	id, err := f.Messengers[0].PostMessage(ctx, text, opts)
	for i, m := range f.Messengers[1:] {
		if m == nil {
			continue
		}
		// Thread ids belong to the primary channel.
		mirrorOpts := opts
		mirrorOpts.InReplyTo = ""
		if _, merr := m.PostMessage(ctx, text, mirrorOpts); merr != nil {
			log.Printf("ticketing mirror=%d post failed (non-fatal): %v", i+1, merr)
		}
	}
	return id, err
}
