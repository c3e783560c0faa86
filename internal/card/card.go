// Package card defines the content card model and the card store helpers
// that merge, stamp and restrict fetched card sets.
//
// Every function here returns a new slice. Input slices are never modified,
// so a fetched card list can be shared between render cycles.
package card

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"time"
)

// Tag is a single card tag. IDs are usually hierarchical, e.g. "panel/filter"
// or "caas:events/session-status/live-expired".
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// UnmarshalJSON accepts either {"id": "..."} or a bare string.
func (t *Tag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.ID = s
		return nil
	}
	type alias Tag
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = Tag(a)
	return nil
}

// DateDetail holds the session window of event-style cards.
type DateDetail struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// ContentArea is the authored text of a card.
type ContentArea struct {
	Title          string     `json:"title,omitempty"`
	Description    string     `json:"description,omitempty"`
	DetailText     string     `json:"detailText,omitempty"`
	DateDetailText DateDetail `json:"dateDetailText"`
}

// ShowCard limits the window in which a card may be displayed.
type ShowCard struct {
	From  string `json:"from,omitempty"`
	Until string `json:"until,omitempty"`
}

// Card is one content item of a collection feed.
//
// IsFeatured and IsBookmarked are never authored. They are stamped by the
// store helpers in this package and by the featured sort.
type Card struct {
	ID           string      `json:"id"`
	Tags         []Tag       `json:"tags,omitempty"`
	ContentArea  ContentArea `json:"contentArea"`
	CardDate     string      `json:"cardDate,omitempty"`
	Modified     string      `json:"modified,omitempty"`
	ShowCard     ShowCard    `json:"showCard"`
	CTALink      string      `json:"ctaLink,omitempty"`
	IsFeatured   bool        `json:"isFeatured,omitempty"`
	IsBookmarked bool        `json:"isBookmarked,omitempty"`
}

// Feed is the card feed payload: GET <endpoint> -> {cards, totalCount}.
type Feed struct {
	Cards      []Card `json:"cards"`
	TotalCount int    `json:"totalCount,omitempty"`
}

// TagIDs returns the ids of the card's tags in order.
func (c Card) TagIDs() []string {
	ids := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		ids[i] = t.ID
	}
	return ids
}

// HasTagID reports whether the card carries a tag with exactly this id.
func (c Card) HasTagID(id string) bool {
	for _, t := range c.Tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// HasTag reports whether any tag id matches re.
func HasTag(re *regexp.Regexp, tags []Tag) bool {
	if re == nil {
		return false
	}
	for _, t := range tags {
		if re.MatchString(t.ID) {
			return true
		}
	}
	return false
}

// Sanitize unescapes HTML entities in authored text ("&amp;" -> "&").
func Sanitize(s string) string {
	return html.UnescapeString(s)
}

// timeLayouts are the ISO-8601 shapes seen in card feeds.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. Timestamps without a zone are
// read as UTC. ok is false for empty or malformed input.
func ParseTime(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
