package domain

import (
	"strings"
	"testing"
)

func validTagMap() map[string]string {
	return map[string]string{
		"bug":             "tag-bug",
		"feature_request": "tag-fr",
		"question":        "tag-q",
		"feedback":        "tag-fb",
		"PlayStore":       "tag-play",
		"AppStore":        "tag-apple",
		"Positive":        "tag-pos",
		"Negative":        "tag-neg",
		"Neutral":         "tag-neu",
	}
}

func TestNewTaxonomyReportsEveryMissingKey(t *testing.T) {
	raw := validTagMap()
	delete(raw, "feedback")
	delete(raw, "Neutral")
	raw["bug"] = "   "

	_, err := NewTaxonomy(raw, SourcePlayStore)
	if err == nil {
		t.Fatal("expected NewTaxonomy to fail")
	}
	for _, want := range []string{"bug", "feedback", "Neutral"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to name %q, got %v", want, err)
		}
	}
}

func TestNewTaxonomyOnlyRequiresConfiguredSources(t *testing.T) {
	raw := validTagMap()
	delete(raw, "AppStore")

	if _, err := NewTaxonomy(raw, SourcePlayStore); err != nil {
		t.Fatalf("AppStore tag should not be required for a play-store-only run: %v", err)
	}
	if _, err := NewTaxonomy(raw, SourcePlayStore, SourceAppStore); err == nil {
		t.Fatal("expected missing AppStore tag to fail when the app store source is enabled")
	}
}

func TestTaxonomyCategory(t *testing.T) {
	tax, err := NewTaxonomy(validTagMap(), SourcePlayStore)
	if err != nil {
		t.Fatalf("NewTaxonomy: %v", err)
	}
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"bug", CategoryBug, true},
		{" feature_request ", CategoryFeatureRequest, true},
		{"question", CategoryQuestion, true},
		{"feedback", CategoryFeedback, true},
		{"praise", CategoryUnclassified, false},
		{"PlayStore", CategoryUnclassified, false},
		{"", CategoryUnclassified, false},
	}
	for _, tt := range tests {
		got, ok := tax.Category(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("Category(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSeverityAndSentimentMappings(t *testing.T) {
	severities := []struct {
		score float64
		want  Severity
	}{
		{10, SeverityHigh},
		{7, SeverityHigh},
		{6.9, SeverityMedium},
		{4, SeverityMedium},
		{3.99, SeverityLow},
		{0, SeverityLow},
	}
	for _, tt := range severities {
		if got := SeverityFromScore(tt.score); got != tt.want {
			t.Fatalf("SeverityFromScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}

	tags := []struct {
		score float64
		want  Tag
	}{
		{0.5, TagPositive},
		{0.051, TagPositive},
		{0.05, TagNeutral},
		{0, TagNeutral},
		{-0.05, TagNeutral},
		{-0.051, TagNegative},
	}
	for _, tt := range tags {
		if got := SentimentTag(tt.score); got != tt.want {
			t.Fatalf("SentimentTag(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}

	if got := SeverityFromSentiment(-0.4); got != SeverityHigh {
		t.Fatalf("negative sentiment should be high severity, got %s", got)
	}
	if got := SeverityFromSentiment(0.4); got != SeverityMedium {
		t.Fatalf("positive sentiment should be medium severity, got %s", got)
	}
	if got := SeverityFromSentiment(0); got != SeverityLow {
		t.Fatalf("neutral sentiment should be low severity, got %s", got)
	}
}

func TestParseFields(t *testing.T) {
	f := ParseFields("```json\n{\"category\": \"spam\", \"severity\": \"7\", \"answer\": 1}\n```")
	if got, ok := f.String("category"); !ok || got != "spam" {
		t.Fatalf("category = %q,%v", got, ok)
	}
	if got, ok := f.Number("severity"); !ok || got != 7 {
		t.Fatalf("quoted severity = %v,%v", got, ok)
	}
	if got, ok := f.Number("answer"); !ok || got != 1 {
		t.Fatalf("answer = %v,%v", got, ok)
	}
	if _, ok := f.String("reason"); ok {
		t.Fatal("missing field must report absent")
	}
}

func TestParseFieldsToleratesProseAndGarbage(t *testing.T) {
	f := ParseFields("Sure! Here is the result: {\"answer\": 0} hope that helps")
	if got, ok := f.Number("answer"); !ok || got != 0 {
		t.Fatalf("answer from prose = %v,%v", got, ok)
	}

	for _, in := range []string{"", "not json", "[1,2,3]", "{broken", "42"} {
		f := ParseFields(in)
		if !f.IsEmpty() {
			t.Fatalf("ParseFields(%q) should be empty, got %s", in, f.Raw())
		}
		if f.Has("category") {
			t.Fatalf("ParseFields(%q) should not have fields", in)
		}
	}
}

func TestFieldsNumberRejectsNonNumeric(t *testing.T) {
	f := ParseFields(`{"severity": "very high", "impact": null}`)
	if _, ok := f.Number("severity"); ok {
		t.Fatal("non-numeric string must not parse as number")
	}
	if _, ok := f.String("impact"); ok {
		t.Fatal("null must not be reported as a string")
	}
}

func TestFieldsNumberRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity"} {
		f := ParseFields(`{"severity": "` + raw + `"}`)
		if v, ok := f.Number("severity"); ok {
			t.Fatalf("Number(%q) = %v, want not ok", raw, v)
		}
	}
	for _, doc := range []string{`{"severity": "1e400"}`, `{"severity": 1e400}`} {
		if v, ok := ParseFields(doc).Number("severity"); ok {
			t.Fatalf("overflowing number in %s should be rejected, got %v", doc, v)
		}
	}
}

func TestZeroValueFieldsIsSafe(t *testing.T) {
	var f Fields
	if f.Has("x") {
		t.Fatal("zero Fields must be empty")
	}
	if f.Raw() != "{}" {
		t.Fatalf("zero Fields raw = %q", f.Raw())
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{
		"playstore":  SourcePlayStore,
		"Play_Store": SourcePlayStore,
		"AppStore":   SourceAppStore,
		"app-store":  SourceAppStore,
	} {
		got, err := ParseSource(in)
		if err != nil || got != want {
			t.Fatalf("ParseSource(%q) = %q,%v", in, got, err)
		}
	}
	if _, err := ParseSource("windows-store"); err == nil {
		t.Fatal("expected unknown source to fail")
	}
	if SourceAppStore.MaxCount() != 50 || SourcePlayStore.MaxCount() != 100 {
		t.Fatal("unexpected source bounds")
	}
}
