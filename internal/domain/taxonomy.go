package domain

import (
	"fmt"
	"sort"
	"strings"
)

type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryQuestion       Category = "question"
	CategoryFeedback       Category = "feedback"
	CategoryUnclassified   Category = "unclassified"
)

// TicketedCategories are the categories that can produce an individual ticket.
var TicketedCategories = []Category{CategoryBug, CategoryFeatureRequest, CategoryFeedback}

// Tag identifies one entry of the configured tag map.
type Tag string

const (
	TagBug            Tag = "bug"
	TagFeatureRequest Tag = "feature_request"
	TagQuestion       Tag = "question"
	TagFeedback       Tag = "feedback"
	TagPlayStore      Tag = "PlayStore"
	TagAppStore       Tag = "AppStore"
	TagPositive       Tag = "Positive"
	TagNegative       Tag = "Negative"
	TagNeutral        Tag = "Neutral"
)

func (c Category) Tag() Tag {
	return Tag(c)
}

// Taxonomy maps every tag the pipeline may apply to its external tag id.
// It is validated once by NewTaxonomy and read-only afterwards.
type Taxonomy struct {
	ids map[Tag]string
}

// NewTaxonomy builds a Taxonomy from the raw config map and fails naming every
// missing required key. Sources lists the review sources that will run, since
// only their source tags are required.
func NewTaxonomy(raw map[string]string, sources ...Source) (Taxonomy, error) {
	required := []Tag{
		TagBug, TagFeatureRequest, TagQuestion, TagFeedback,
		TagPositive, TagNegative, TagNeutral,
	}
	for _, s := range sources {
		required = append(required, s.Tag())
	}

	ids := make(map[Tag]string, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		ids[Tag(strings.TrimSpace(k))] = v
	}

	var missing []string
	for _, tag := range required {
		if ids[tag] == "" {
			missing = append(missing, string(tag))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Taxonomy{}, fmt.Errorf("taxonomy missing tag ids for: %s", strings.Join(missing, ", "))
	}
	return Taxonomy{ids: ids}, nil
}

// ID returns the external id for tag.
func (t Taxonomy) ID(tag Tag) (string, bool) {
	id, ok := t.ids[tag]
	return id, ok
}

// Category resolves an oracle-provided category name. Only the four review
// categories are eligible; anything else (including tag names such as
// "PlayStore") is rejected.
func (t Taxonomy) Category(name string) (Category, bool) {
	c := Category(strings.TrimSpace(name))
	switch c {
	case CategoryBug, CategoryFeatureRequest, CategoryQuestion, CategoryFeedback:
	default:
		return CategoryUnclassified, false
	}
	if _, ok := t.ids[c.Tag()]; !ok {
		return CategoryUnclassified, false
	}
	return c, true
}
