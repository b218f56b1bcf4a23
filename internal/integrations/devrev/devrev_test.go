package devrev

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reviewbot/internal/domain"
	"testing"
	"time"
)

func TestCreateTicket(t *testing.T) {
	var got worksCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works.create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "pat" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"work":{"id":"don:core:ticket/42"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "pat", "snap")
	id, err := c.CreateTicket(context.Background(), domain.TicketDraft{
		Title:    "Crash",
		TagIDs:   []string{"t-bug", "t-play", "t-neg"},
		Body:     "body",
		Severity: domain.SeverityHigh,
		Owner:    "DEVU-1",
		Part:     "PROD-1",
	})
	if err != nil {
		t.Fatalf("CreateTicket returned error: %v", err)
	}
	if id != "don:core:ticket/42" {
		t.Fatalf("unexpected id %q", id)
	}
	if got.Type != "ticket" || got.Severity != "high" || got.AppliesToPart != "PROD-1" {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Tags) != 3 || got.Tags[2].ID != "t-neg" || len(got.OwnedBy) != 1 {
		t.Fatalf("unexpected tags/owner %+v", got)
	}
}

func TestCreateTicketFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad tag"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "pat", "snap").CreateTicket(context.Background(), domain.TicketDraft{Title: "x"}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestPostMessageTargetsAndExpiry(t *testing.T) {
	var got []timelineCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req timelineCreateRequest
		_ = json.Unmarshal(body, &req)
		got = append(got, req)
		_, _ = w.Write([]byte(`{"timeline_entry":{"id":"te-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pat", "snap-1")
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	id, err := c.PostMessage(context.Background(), "Fetching reviews ...", domain.PostOptions{VisibilityDelay: time.Minute})
	if err != nil || id != "te-1" {
		t.Fatalf("PostMessage = %q, %v", id, err)
	}
	if _, err := c.PostMessage(context.Background(), "reply", domain.PostOptions{InReplyTo: "te-0"}); err != nil {
		t.Fatalf("PostMessage reply: %v", err)
	}

	if got[0].Object != "snap-1" || got[0].ExpiresAt != "2026-01-02T03:05:05Z" || got[0].Type != "timeline_comment" {
		t.Fatalf("unexpected first request %+v", got[0])
	}
	if got[1].Object != "te-0" || got[1].ExpiresAt != "" {
		t.Fatalf("unexpected reply request %+v", got[1])
	}
}
