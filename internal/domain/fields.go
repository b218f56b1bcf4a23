package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Fields is the decoded JSON object returned by an oracle call. Every accessor
// reports whether the field was present with a usable type, so callers apply
// their own defaults.
type Fields struct {
	raw string
}

// EmptyFields is what callers receive after any oracle failure.
func EmptyFields() Fields {
	return Fields{raw: "{}"}
}

// ParseFields extracts the first JSON object from text, tolerating markdown
// fences and surrounding prose. Anything that is not an object yields
// EmptyFields.
func ParseFields(text string) Fields {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if gjson.Valid(text) && gjson.Parse(text).IsObject() {
		return Fields{raw: text}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if gjson.Valid(candidate) && gjson.Parse(candidate).IsObject() {
			return Fields{raw: candidate}
		}
	}
	return EmptyFields()
}

func (f Fields) get(key string) gjson.Result {
	if f.raw == "" {
		return gjson.Result{}
	}
	return gjson.Get(f.raw, gjson.Escape(key))
}

func (f Fields) Has(key string) bool {
	return f.get(key).Exists()
}

// String returns a string field; numbers and booleans are rendered as text.
func (f Fields) String(key string) (string, bool) {
	r := f.get(key)
	switch r.Type {
	case gjson.String:
		return r.Str, true
	case gjson.Number, gjson.True, gjson.False:
		return r.Raw, true
	}
	return "", false
}

// Number returns a numeric field. Numeric strings ("7", " 0.5 ") are accepted
// because models routinely quote numbers. NaN and infinities are rejected.
func (f Fields) Number(key string) (float64, bool) {
	r := f.get(key)
	switch r.Type {
	case gjson.Number:
		if math.IsInf(r.Num, 0) {
			return 0, false
		}
		return r.Num, true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case gjson.True:
		return 1, true
	case gjson.False:
		return 0, true
	}
	return 0, false
}

func (f Fields) IsEmpty() bool {
	return len(gjson.Parse(f.raw).Map()) == 0
}

// Raw returns the JSON object text, "{}" when empty.
func (f Fields) Raw() string {
	if f.raw == "" {
		return "{}"
	}
	return f.raw
}
