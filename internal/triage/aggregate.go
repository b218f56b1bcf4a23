package triage

import "reviewbot/internal/domain"

// Bucket holds the accepted summaries of one category, in processing order.
// Empty summaries are kept so len(Summaries) always equals Count.
type Bucket struct {
	Summaries []string
	Count     int
}

// Aggregate is the run-scoped state shared by every stage of one Run.
// It is owned by that Run and never shared across runs.
type Aggregate struct {
	Spam           int
	NSFW           int
	AIGenerated    int
	Duplicates     int
	Unclassified   int
	TicketsCreated int

	// Feedback-only sentiment accumulator used for the run mean.
	SentimentSum     float64
	SentimentSamples int

	buckets map[domain.Category]*Bucket
}

func newAggregate() *Aggregate {
	a := &Aggregate{buckets: make(map[domain.Category]*Bucket)}
	for _, c := range []domain.Category{domain.CategoryBug, domain.CategoryFeatureRequest, domain.CategoryQuestion, domain.CategoryFeedback} {
		a.buckets[c] = &Bucket{}
	}
	return a
}

// Bucket returns the bucket for c. Unknown categories get an empty bucket
// that is not retained.
func (a *Aggregate) Bucket(c domain.Category) Bucket {
	b, ok := a.buckets[c]
	if !ok {
		return Bucket{}
	}
	return Bucket{Summaries: append([]string(nil), b.Summaries...), Count: b.Count}
}

// commit records a classified review in its category bucket.
func (a *Aggregate) commit(c domain.Category, summary string) {
	b, ok := a.buckets[c]
	if !ok {
		return
	}
	b.Count++
	b.Summaries = append(b.Summaries, summary)
}

func (a *Aggregate) addSentiment(v float64) {
	a.SentimentSum += v
	a.SentimentSamples++
}

// MeanSentiment is false when no sample was recorded.
func (a *Aggregate) MeanSentiment() (float64, bool) {
	if a.SentimentSamples == 0 {
		return 0, false
	}
	return a.SentimentSum / float64(a.SentimentSamples), true
}
