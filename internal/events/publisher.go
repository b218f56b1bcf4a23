// Package events streams finished triage runs to Kafka, one message per
// run plus one per review outcome, keyed by run id.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

type runEvent struct {
	Type             string    `json:"type"`
	RunID            string    `json:"run_id"`
	Source           string    `json:"source"`
	Parameter        string    `json:"parameter"`
	RequestedCount   int       `json:"requested_count"`
	Fetched          int       `json:"fetched"`
	Spam             int       `json:"spam"`
	NSFW             int       `json:"nsfw"`
	AIGenerated      int       `json:"ai_generated"`
	Duplicates       int       `json:"duplicates"`
	Unclassified     int       `json:"unclassified"`
	Bugs             int       `json:"bugs"`
	FeatureRequests  int       `json:"feature_requests"`
	Questions        int       `json:"questions"`
	Feedback         int       `json:"feedback"`
	TicketsCreated   int       `json:"tickets_created"`
	AverageSentiment float64   `json:"average_sentiment"`
	SentimentSamples int       `json:"sentiment_samples"`
	Cancelled        bool      `json:"cancelled"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

type outcomeEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	ReviewID   string    `json:"review_id"`
	ReviewURL  string    `json:"review_url,omitempty"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	Outcome    string    `json:"outcome"`
	TicketID   string    `json:"ticket_id,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Sentiment  float64   `json:"sentiment"`
	Summary    string    `json:"summary,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// buildMessages renders the run summary first, then outcomes in processing order.
func buildMessages(run domain.RunRecord, outcomes []domain.OutcomeRecord) ([]kafka.Message, error) {
	key := []byte(run.ID)
	msgs := make([]kafka.Message, 0, len(outcomes)+1)

	data, err := json.Marshal(runEvent{
		Type:             "triage_run",
		RunID:            run.ID,
		Source:           string(run.Source),
		Parameter:        run.Parameter,
		RequestedCount:   run.RequestedCount,
		Fetched:          run.Fetched,
		Spam:             run.Spam,
		NSFW:             run.NSFW,
		AIGenerated:      run.AIGenerated,
		Duplicates:       run.Duplicates,
		Unclassified:     run.Unclassified,
		Bugs:             run.Bugs,
		FeatureRequests:  run.FeatureRequests,
		Questions:        run.Questions,
		Feedback:         run.Feedback,
		TicketsCreated:   run.TicketsCreated,
		AverageSentiment: run.AverageSentiment,
		SentimentSamples: run.SentimentSamples,
		Cancelled:        run.Cancelled,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	msgs = append(msgs, kafka.Message{Key: key, Value: data})

	for _, o := range outcomes {
		data, err := json.Marshal(outcomeEvent{
			Type:       "review_outcome",
			RunID:      o.RunID,
			ReviewID:   o.ReviewID,
			ReviewURL:  o.ReviewURL,
			Source:     string(o.Source),
			Category:   string(o.Category),
			Outcome:    string(o.Outcome),
			TicketID:   o.TicketID,
			Severity:   string(o.Severity),
			Sentiment:  o.Sentiment,
			Summary:    o.Summary,
			RecordedAt: o.RecordedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding outcome %s: %w", o.ReviewID, err)
		}
		msgs = append(msgs, kafka.Message{Key: key, Value: data})
	}
	return msgs, nil
}

// RecordRun publishes the run in a single batch write.
func (p *Publisher) RecordRun(ctx context.Context, run domain.RunRecord, outcomes []domain.OutcomeRecord) error {
	msgs, err := buildMessages(run, outcomes)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing run %s to %s: %w", run.ID, p.topic, err)
	}
	log.Printf("events published run=%s topic=%s messages=%d", run.ID, p.topic, len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
