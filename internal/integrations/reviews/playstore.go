package reviews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reviewbot/internal/domain"
	"reviewbot/internal/httpx"
	"strconv"

	"github.com/tidwall/gjson"
)

// PlayStore queries a Google Play review scraper exposed over HTTP
// (RapidAPI or self-hosted). The response is either a bare array of reviews
// or an object with the array under "data".
type PlayStore struct {
	endpoint   string
	apiKey     string
	apiHost    string
	httpClient *http.Client
}

func NewPlayStore(endpoint, apiKey, apiHost string) *PlayStore {
	return &PlayStore{endpoint: endpoint, apiKey: apiKey, apiHost: apiHost, httpClient: httpx.ExternalHTTPClient()}
}

func (p *PlayStore) Fetch(ctx context.Context, req domain.FetchRequest) ([]domain.Review, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("play store endpoint: %w", err)
	}
	q := u.Query()
	q.Set("appId", req.AppID)
	q.Set("num", strconv.Itoa(req.Count))
	q.Set("sort", "rating")
	if req.Country != "" {
		q.Set("country", req.Country)
	}
	u.RawQuery = q.Encode()

	body, err := getJSON(ctx, p.httpClient, u.String(), map[string]string{
		"X-RapidAPI-Key":  p.apiKey,
		"X-RapidAPI-Host": p.apiHost,
	})
	if err != nil {
		return nil, fmt.Errorf("play store reviews: %w", err)
	}

	items := gjson.ParseBytes(body)
	if !items.IsArray() {
		items = items.Get("data")
	}

	var out []domain.Review
	for _, r := range items.Array() {
		out = append(out, domain.Review{
			ID:       r.Get("id").String(),
			URL:      r.Get("url").String(),
			Title:    r.Get("title").String(),
			Text:     r.Get("text").String(),
			UserName: r.Get("userName").String(),
			Rating:   int(r.Get("score").Int()),
			Source:   domain.SourcePlayStore,
		})
		if req.Count > 0 && len(out) >= req.Count {
			break
		}
	}
	return out, nil
}
