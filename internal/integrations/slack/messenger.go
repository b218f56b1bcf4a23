package slackbot

import (
	"context"
	"reviewbot/internal/domain"

	"github.com/slack-go/slack"
)

// ChannelMessenger posts run progress to one Slack channel. The returned
// id is the message timestamp, usable as InReplyTo for threading.
type ChannelMessenger struct {
	api       *slack.Client
	channelID string
}

func NewChannelMessenger(api *slack.Client, channelID string) *ChannelMessenger {
	return &ChannelMessenger{api: api, channelID: channelID}
}

// PostMessage ignores VisibilityDelay; Slack shows messages immediately.
func (m *ChannelMessenger) PostMessage(ctx context.Context, text string, opts domain.PostOptions) (string, error) {
	msgOpts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if opts.InReplyTo != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(opts.InReplyTo))
	}
	_, ts, err := m.api.PostMessageContext(ctx, m.channelID, msgOpts...)
	if err != nil {
		return "", err
	}
	return ts, nil
}
