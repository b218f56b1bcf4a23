package slackbot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	sqlitedb "reviewbot/internal/storage/sqlite"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlitedb.InitDB(dbPath)
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type slackCall struct {
	method   string
	channel  string
	text     string
	threadTS string
	ts       string
	blocks   string
}

// mockSlack records every Web API call made through the returned client.
type mockSlack struct {
	mu     sync.Mutex
	calls  []slackCall
	nextTS int
}

func (m *mockSlack) byMethod(method string) []slackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []slackCall
	for _, c := range m.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newMockSlackAPI(t *testing.T) (*slack.Client, *mockSlack) {
	t.Helper()
	resetUserCache()
	t.Cleanup(resetUserCache)

	mock := &mockSlack{nextTS: 100}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		method := strings.TrimPrefix(r.URL.Path, "/api/")

		mock.mu.Lock()
		call := slackCall{
			method:   method,
			channel:  r.Form.Get("channel"),
			text:     r.Form.Get("text"),
			threadTS: r.Form.Get("thread_ts"),
			ts:       r.Form.Get("ts"),
			blocks:   r.Form.Get("blocks"),
		}
		mock.calls = append(mock.calls, call)
		mock.nextTS++
		ts := fmt.Sprintf("1700000000.%06d", mock.nextTS)
		mock.mu.Unlock()

		switch method {
		case "users.list":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"members": []map[string]any{
					{
						"id":        "U0BOB0001",
						"name":      "bob",
						"real_name": "Bob Real",
						"profile":   map[string]any{"display_name": "Bob Display"},
					},
				},
			})
		case "chat.postMessage":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": call.channel, "ts": ts})
		case "chat.update":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": call.channel, "ts": call.ts, "text": call.text})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(server.Close)

	return slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/")), mock
}
