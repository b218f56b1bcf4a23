// Package sentiment scores review text through a RapidAPI-hosted
// sentiment service returning {"type": label, "score": value}.
package sentiment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reviewbot/internal/domain"
	"reviewbot/internal/httpx"
	"strings"

	"github.com/tidwall/gjson"
)

type Client struct {
	url        string
	host       string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, host, apiKey string) *Client {
	return &Client{url: endpoint, host: host, apiKey: apiKey, httpClient: httpx.ExternalHTTPClient()}
}

func (c *Client) Score(ctx context.Context, text string) (domain.SentimentScore, error) {
	if c.apiKey == "" {
		return domain.SentimentScore{}, fmt.Errorf("sentiment api key not configured")
	}
	form := url.Values{"text": {text}}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.SentimentScore{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SentimentScore{}, fmt.Errorf("sentiment request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SentimentScore{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.SentimentScore{}, fmt.Errorf("sentiment status %d", resp.StatusCode)
	}

	score := gjson.GetBytes(body, "score")
	if score.Type != gjson.Number {
		return domain.SentimentScore{}, fmt.Errorf("sentiment response missing numeric score")
	}
	return domain.SentimentScore{
		Label: gjson.GetBytes(body, "type").String(),
		Value: score.Float(),
	}, nil
}
