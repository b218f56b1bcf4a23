package domain

import "time"

type Outcome string

const (
	OutcomeSpam              Outcome = "filtered_spam"
	OutcomeNSFW              Outcome = "filtered_nsfw"
	OutcomeAIGenerated       Outcome = "filtered_ai"
	OutcomeUnclassified      Outcome = "unclassified"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeQuestionCollected Outcome = "question_collected"
	OutcomeTicketed          Outcome = "ticketed"
	OutcomeTicketFailed      Outcome = "ticket_failed"
	OutcomeSkippedCancelled  Outcome = "skipped_cancelled"
)

// OutcomeRecord is the terminal state of one review in one run.
type OutcomeRecord struct {
	RunID      string
	ReviewID   string
	ReviewURL  string
	Source     Source
	Category   Category
	Outcome    Outcome
	TicketID   string
	Severity   Severity
	Sentiment  float64
	Summary    string
	RecordedAt time.Time
}

// RunRecord summarizes one batch item.
type RunRecord struct {
	ID               string
	Source           Source
	Parameter        string
	RequestedCount   int
	Fetched          int
	Spam             int
	NSFW             int
	AIGenerated      int
	Duplicates       int
	Unclassified     int
	Bugs             int
	FeatureRequests  int
	Questions        int
	Feedback         int
	TicketsCreated   int
	AverageSentiment float64
	SentimentSamples int
	Cancelled        bool
	StartedAt        time.Time
	FinishedAt       time.Time
}
