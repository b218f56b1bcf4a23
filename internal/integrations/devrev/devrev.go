// Package devrev creates tickets and timeline comments through the DevRev
// public REST API.
package devrev

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
	"time"
)

type Client struct {
	endpoint   string
	token      string
	snapInID   string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(endpoint, token, snapInID string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		snapInID:   snapInID,
		httpClient: httpx.ExternalHTTPClient(),
		now:        time.Now,
	}
}

type tagRef struct {
	ID string `json:"id"`
}

type worksCreateRequest struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Tags          []tagRef `json:"tags,omitempty"`
	OwnedBy       []string `json:"owned_by,omitempty"`
	AppliesToPart string   `json:"applies_to_part,omitempty"`
	Severity      string   `json:"severity,omitempty"`
}

type worksCreateResponse struct {
	Work struct {
		ID string `json:"id"`
	} `json:"work"`
}

type timelineCreateRequest struct {
	Object    string `json:"object"`
	Type      string `json:"type"`
	Body      string `json:"body"`
	BodyType  string `json:"body_type"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type timelineCreateResponse struct {
	TimelineEntry struct {
		ID string `json:"id"`
	} `json:"timeline_entry"`
}

// CreateTicket creates a ticket work item and returns its id.
func (c *Client) CreateTicket(ctx context.Context, draft domain.TicketDraft) (string, error) {
	req := worksCreateRequest{
		Type:          "ticket",
		Title:         draft.Title,
		Body:          draft.Body,
		AppliesToPart: draft.Part,
		Severity:      string(draft.Severity),
	}
	for _, id := range draft.TagIDs {
		req.Tags = append(req.Tags, tagRef{ID: id})
	}
	if draft.Owner != "" {
		req.OwnedBy = []string{draft.Owner}
	}

	var resp worksCreateResponse
	if err := c.post(ctx, "/works.create", req, &resp); err != nil {
		return "", fmt.Errorf("creating ticket: %w", err)
	}
	if resp.Work.ID == "" {
		return "", fmt.Errorf("creating ticket: response has no work id")
	}
	log.Printf("devrev ticket created id=%s severity=%s tags=%d", resp.Work.ID, draft.Severity, len(draft.TagIDs))
	return resp.Work.ID, nil
}

// PostMessage adds a timeline comment to the snap-in, or to opts.InReplyTo
// when set. A positive VisibilityDelay makes the comment expire.
func (c *Client) PostMessage(ctx context.Context, text string, opts domain.PostOptions) (string, error) {
	object := c.snapInID
	if opts.InReplyTo != "" {
		object = opts.InReplyTo
	}
	if object == "" {
		return "", fmt.Errorf("posting message: no snap-in or parent object configured")
	}
	req := timelineCreateRequest{
		Object:   object,
		Type:     "timeline_comment",
		Body:     text,
		BodyType: "text",
	}
	if opts.VisibilityDelay > 0 {
		req.ExpiresAt = c.now().Add(opts.VisibilityDelay).UTC().Format(time.RFC3339)
	}

	var resp timelineCreateResponse
	if err := c.post(ctx, "/timeline-entries.create", req, &resp); err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	return resp.TimelineEntry.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("DevRev API returned %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
