package domain

import (
	"fmt"
	"strings"
)

type Source string

const (
	SourcePlayStore Source = "playstore"
	SourceAppStore  Source = "appstore"
)

// ParseSource accepts the config/command spelling of a source ("playstore",
// "play_store", "PlayStore", ...).
func ParseSource(s string) (Source, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	switch norm {
	case "playstore", "googleplay", "gplay":
		return SourcePlayStore, nil
	case "appstore", "apple", "ios":
		return SourceAppStore, nil
	}
	return "", fmt.Errorf("unknown review source %q", s)
}

// DisplayName is used in user-facing messages and ticket bodies.
func (s Source) DisplayName() string {
	switch s {
	case SourcePlayStore:
		return "Google Play Store"
	case SourceAppStore:
		return "Apple App Store"
	}
	return string(s)
}

// MaxCount is the largest review count a single run may request.
func (s Source) MaxCount() int {
	if s == SourceAppStore {
		return 50
	}
	return 100
}

func (s Source) Tag() Tag {
	if s == SourceAppStore {
		return TagAppStore
	}
	return TagPlayStore
}

// Review is immutable once fetched.
type Review struct {
	ID       string
	URL      string
	Title    string // optional
	Text     string
	UserName string
	Rating   int
	Source   Source
}

// FetchRequest carries the count plus source-specific options.
type FetchRequest struct {
	AppID   string
	Count   int
	Country string
}
