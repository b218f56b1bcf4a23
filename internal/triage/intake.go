package triage

import (
	"context"
	"fmt"
	"log"
	"reviewbot/internal/domain"
	"strconv"
	"strings"
)

const defaultReviewCount = 10

// CountResolution is the outcome of parsing the count parameter. Notice is
// a corrective message for the user; processing continues with Count.
type CountResolution struct {
	Count  int
	Help   bool
	Notice string
}

// ResolveCount parses the free-text parameter against max. Invalid input
// falls back to the default count and out-of-range input is clamped.
func ResolveCount(param string, max int) CountResolution {
	param = strings.TrimSpace(param)
	if strings.EqualFold(param, "help") {
		return CountResolution{Help: true}
	}
	if param == "" {
		return CountResolution{Count: min(defaultReviewCount, max)}
	}
	n, err := strconv.Atoi(param)
	if err != nil {
		return CountResolution{Count: min(defaultReviewCount, max), Notice: "Please enter a valid number"}
	}
	if n > max {
		return CountResolution{Count: max, Notice: fmt.Sprintf("Please enter a number less than or equal to %d", max)}
	}
	if n < 1 {
		return CountResolution{Count: 1, Notice: fmt.Sprintf("Please enter a number between 1 and %d", max)}
	}
	return CountResolution{Count: n}
}

// HelpText is the usage message for a source's command.
func HelpText(src domain.Source, command string) string {
	if command == "" {
		command = "/" + string(src) + "-reviews"
	}
	name := strings.TrimPrefix(command, "/")
	return fmt.Sprintf("%s - Fetch reviews from %s and create tickets.\n\n"+
		"Usage: %s <number_of_reviews_to_fetch>\n\n"+
		"`number_of_reviews_to_fetch`: Number of reviews to fetch from %s. Should be a number between 1 and %d. If not specified, it defaults to %d.",
		name, src.DisplayName(), command, src.DisplayName(), src.MaxCount(), defaultReviewCount)
}

// intake resolves the count and fetches the reviews. ok is false when the
// event was a help request.
func (r *run) intake(ctx context.Context) ([]domain.Review, bool, error) {
	src := r.ev.Source
	res := ResolveCount(r.ev.Parameter, src.MaxCount())
	if res.Help {
		r.report.Help = true
		r.post(ctx, HelpText(src, r.ev.Command))
		return nil, false, nil
	}
	r.report.Count = res.Count

	r.post(ctx, fmt.Sprintf("Fetching reviews from %s ...", src.DisplayName()))
	if res.Notice != "" {
		r.post(ctx, res.Notice)
	}

	source, ok := r.p.deps.Sources[src]
	if !ok {
		r.post(ctx, fmt.Sprintf("%s is not configured.", src.DisplayName()))
		return nil, false, fmt.Errorf("%w: no review source configured for %s", ErrFetch, src)
	}

	callCtx, cancel := r.callContext(ctx)
	reviews, err := source.Fetch(callCtx, domain.FetchRequest{
		AppID:   r.p.opts.AppIDs[src],
		Count:   res.Count,
		Country: r.p.opts.Country,
	})
	cancel()
	if err != nil {
		log.Printf("triage fetch source=%s count=%d error: %v", src, res.Count, err)
		r.post(ctx, fmt.Sprintf("Failed to fetch reviews from %s.", src.DisplayName()))
		return nil, false, fmt.Errorf("%w from %s: %v", ErrFetch, src, err)
	}
	if len(reviews) > res.Count {
		reviews = reviews[:res.Count]
	}
	for i := range reviews {
		if reviews[i].Source == "" {
			reviews[i].Source = src
		}
	}
	r.report.Fetched = len(reviews)
	log.Printf("triage fetch source=%s requested=%d fetched=%d", src, res.Count, len(reviews))

	r.post(ctx, fmt.Sprintf("Fetched %d reviews, creating tickets now.", len(reviews)))
	return reviews, true, nil
}
