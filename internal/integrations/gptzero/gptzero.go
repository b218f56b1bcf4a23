// Package gptzero scores how likely a review was machine-generated.
package gptzero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reviewbot/internal/httpx"

	"github.com/tidwall/gjson"
)

type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewClient(url, apiKey string) *Client {
	return &Client{url: url, apiKey: apiKey, httpClient: httpx.ExternalHTTPClient()}
}

// Predict returns the probability in [0,1] that text is entirely generated.
func (c *Client) Predict(ctx context.Context, text string) (float64, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("gptzero api key not configured")
	}
	body, err := json.Marshal(map[string]string{"document": text})
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gptzero request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gptzero status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	prob := gjson.GetBytes(respBody, "documents.0.completely_generated_prob")
	if !prob.Exists() || prob.Type != gjson.Number {
		return 0, fmt.Errorf("gptzero response missing completely_generated_prob")
	}
	return prob.Float(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
