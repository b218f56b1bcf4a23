package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"reviewbot/internal/domain"
	"reviewbot/internal/httpx"
	"strings"
)

const defaultAPIBaseURL = "https://api.github.com"

// IssueTracker files review tickets as GitHub issues. Taxonomy tag ids are
// used as label names.
type IssueTracker struct {
	apiBaseURL string
	token      string
	repo       string
	httpClient *http.Client
}

func NewIssueTracker(token, repo string) *IssueTracker {
	return &IssueTracker{
		apiBaseURL: defaultAPIBaseURL,
		token:      token,
		repo:       strings.Trim(repo, "/"),
		httpClient: httpx.ExternalHTTPClient(),
	}
}

type createIssueRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

type createIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreateTicket opens an issue and returns "owner/repo#number".
func (g *IssueTracker) CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	labels := append([]string{}, draft.TagIDs...)
	if draft.Severity != "" {
		labels = append(labels, "severity:"+string(draft.Severity))
	}
	payload := createIssueRequest{
		Title:  draft.Title,
		Body:   draft.Body,
		Labels: labels,
	}
	if draft.Owner != "" {
		payload.Assignees = []string{draft.Owner}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/repos/%s/issues", g.apiBaseURL, g.repo)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result createIssueResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	id := fmt.Sprintf("%s#%d", g.repo, result.Number)
	log.Printf("github issue created id=%s url=%s", id, result.HTMLURL)
	return id, nil
}
