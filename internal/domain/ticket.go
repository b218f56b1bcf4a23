package domain

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFromScore maps a 0-10 impact score to a ticket severity.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 7:
		return SeverityHigh
	case score >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromSentiment is used where no impact score exists: unhappy
// customers rank highest.
func SeverityFromSentiment(score float64) Severity {
	switch {
	case score < -0.05:
		return SeverityHigh
	case score > 0.05:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SentimentTag maps a sentiment score to one of the three sentiment tags.
func SentimentTag(score float64) Tag {
	switch {
	case score > 0.05:
		return TagPositive
	case score < -0.05:
		return TagNegative
	default:
		return TagNeutral
	}
}

type SentimentScore struct {
	Label string
	Value float64
}

// TicketDraft is built and consumed inside a single ticket synthesis.
type TicketDraft struct {
	Title    string
	TagIDs   []string
	Body     string
	Severity Severity
	Owner    string
	Part     string
}

type PostOptions struct {
	VisibilityDelay time.Duration
	InReplyTo       string
}
