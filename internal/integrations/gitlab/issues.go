package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"reviewbot/internal/domain"
	"reviewbot/internal/httpx"
	"strconv"
	"strings"
)

// IssueTracker files review tickets as GitLab issues in one project.
// Taxonomy tag ids are used as label names.
type IssueTracker struct {
	baseURL    string
	token      string
	project    string
	httpClient *http.Client
}

// NewIssueTracker accepts a numeric project id or a "group/project" path.
func NewIssueTracker(baseURL, token, project string) *IssueTracker {
	return &IssueTracker{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		project:    strings.Trim(project, "/"),
		httpClient: httpx.ExternalHTTPClient(),
	}
}

type createIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Labels      string `json:"labels,omitempty"`
	AssigneeIDs []int  `json:"assignee_ids,omitempty"`
}

type createIssueResponse struct {
	IID        int    `json:"iid"`
	WebURL     string `json:"web_url"`
	References struct {
		Full string `json:"full"`
	} `json:"references"`
}

// CreateTicket opens an issue and returns its full reference
// ("group/project#iid").
func (g *IssueTracker) CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	labels := append([]string{}, draft.TagIDs...)
	if draft.Severity != "" {
		labels = append(labels, "severity::"+string(draft.Severity))
	}
	payload := createIssueRequest{
		Title:       draft.Title,
		Description: draft.Body,
		Labels:      strings.Join(labels, ","),
	}
	if draft.Owner != "" {
		// GitLab assigns by numeric user id only.
		if id, err := strconv.Atoi(draft.Owner); err == nil {
			payload.AssigneeIDs = []int{id}
		} else {
			log.Printf("gitlab owner=%q is not a user id, leaving issue unassigned", draft.Owner)
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/api/v4/projects/%s/issues", g.baseURL, url.PathEscape(g.project))
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("GitLab API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result createIssueResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	id := result.References.Full
	if id == "" {
		id = fmt.Sprintf("%s#%d", g.project, result.IID)
	}
	log.Printf("gitlab issue created id=%s url=%s", id, result.WebURL)
	return id, nil
}
