package reviews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reviewbot/internal/domain"
	"reviewbot/internal/httpx"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultITunesBaseURL = "https://itunes.apple.com"

// AppStore reads the public iTunes customer-review RSS feed. One page holds
// at most 50 reviews, which is why App Store runs are capped at 50.
type AppStore struct {
	baseURL    string
	httpClient *http.Client
}

func NewAppStore(baseURL string) *AppStore {
	if baseURL == "" {
		baseURL = defaultITunesBaseURL
	}
	return &AppStore{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpx.ExternalHTTPClient()}
}

func (a *AppStore) Fetch(ctx context.Context, req domain.FetchRequest) ([]domain.Review, error) {
	country := req.Country
	if country == "" {
		country = "us"
	}
	endpoint := fmt.Sprintf("%s/%s/rss/customerreviews/page=1/id=%s/sortby=mostrecent/json", a.baseURL, country, req.AppID)
	body, err := getJSON(ctx, a.httpClient, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("app store feed: %w", err)
	}

	// A single-entry feed is rendered as an object instead of an array.
	entries := gjson.GetBytes(body, "feed.entry")
	if entries.IsObject() {
		entries = gjson.Parse("[" + entries.Raw + "]")
	}

	var out []domain.Review
	for _, e := range entries.Array() {
		text := e.Get("content.label").String()
		if text == "" {
			// The first entry of older feeds describes the app itself.
			continue
		}
		out = append(out, domain.Review{
			ID:       e.Get("id.label").String(),
			URL:      e.Get("link.attributes.href").String(),
			Title:    e.Get("title.label").String(),
			Text:     text,
			UserName: e.Get("author.name.label").String(),
			Rating:   int(e.Get("im:rating.label").Int()),
			Source:   domain.SourceAppStore,
		})
		if req.Count > 0 && len(out) >= req.Count {
			break
		}
	}
	return out, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return body, nil
}
