// Package search implements free-text card search with match highlighting.
//
// Fields are addressed by dotted JSON paths over the card's wire form
// ("contentArea.title", "tags.0.label"), so any authored field can be made
// searchable without code changes.
package search

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MinQueryLength is the shortest query that triggers a search.
const MinQueryLength = 3

// HighlightClass marks the span wrapped around every match.
const HighlightClass = "consonant-SearchResult"

// HighlightOpen and HighlightClose enclose every match.
const (
	HighlightOpen  = `<span data-testid="` + HighlightClass + `" class="` + HighlightClass + `">`
	HighlightClose = `</span>`
)

// DefaultFields are searched when a collection does not name any.
var DefaultFields = []string{"contentArea.title", "contentArea.description"}

// Matcher is a compiled, case-insensitive query.
type Matcher struct {
	query string
	re    *regexp.Regexp
}

// NewMatcher compiles query. ok is false when the trimmed query is shorter
// than MinQueryLength.
func NewMatcher(query string) (m *Matcher, ok bool) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryLength {
		return nil, false
	}
	return &Matcher{query: q, re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(q))}, true
}

// Match reports whether s contains the query, ignoring case and HTML entities.
func (m *Matcher) Match(s string) bool {
	return m.re.MatchString(card.Sanitize(s))
}

// Highlight wraps every occurrence of the query in s with the highlight span.
// Matching runs on the entity-unescaped text and the matched text keeps its
// original case. Text outside and inside the spans is HTML-escaped, so the
// spans are the only markup in the result.
func (m *Matcher) Highlight(s string) string {
	plain := card.Sanitize(s)
	var b strings.Builder
	last := 0
	for _, loc := range m.re.FindAllStringIndex(plain, -1) {
		b.WriteString(html.EscapeString(plain[last:loc[0]]))
		b.WriteString(HighlightOpen)
		b.WriteString(html.EscapeString(plain[loc[0]:loc[1]]))
		b.WriteString(HighlightClose)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(plain[last:]))
	return b.String()
}

// Filter returns the cards matching query in any of fields, in input order
// and unmodified. Queries shorter than MinQueryLength match nothing.
func Filter(cards []card.Card, query string, fields []string) []card.Card {
	m, ok := NewMatcher(query)
	if !ok {
		return []card.Card{}
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	result := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if m.matchCard(c, fields) {
			result = append(result, c)
		}
	}
	return result
}

// Highlight rewrites the matching fields of every card with highlights.
// Cards without a match, and all cards for a too-short query, are returned
// unchanged.
func Highlight(cards []card.Card, query string, fields []string) []card.Card {
	m, ok := NewMatcher(query)
	if !ok {
		return cards
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	out := make([]card.Card, len(cards))
	for i, c := range cards {
		out[i], _ = m.highlightCard(c, fields)
	}
	return out
}

// Cards returns the cards matching query in any of fields, in input order,
// with the matching fields highlighted. The others pass through untouched.
// Queries shorter than MinQueryLength match nothing.
func Cards(cards []card.Card, query string, fields []string) []card.Card {
	return Highlight(Filter(cards, query, fields), query, fields)
}

// HighlightCard highlights query inside one field of c. The card is returned
// unchanged when the field is missing, not a string, or does not match.
func HighlightCard(c card.Card, field, query string) card.Card {
	m, ok := NewMatcher(query)
	if !ok {
		return c
	}
	hc, _ := m.highlightCard(c, []string{field})
	return hc
}

func (m *Matcher) matchCard(c card.Card, fields []string) bool {
	data, err := json.Marshal(c)
	if err != nil {
		return false
	}
	for _, path := range fields {
		if v := gjson.GetBytes(data, path); v.Type == gjson.String && m.Match(v.Str) {
			return true
		}
	}
	return false
}

func (m *Matcher) highlightCard(c card.Card, fields []string) (card.Card, bool) {
	data, err := json.Marshal(c)
	if err != nil {
		return c, false
	}

	matched := false
	for _, path := range fields {
		v := gjson.GetBytes(data, path)
		if v.Type != gjson.String || !m.Match(v.Str) {
			continue
		}
		updated, err := sjson.SetBytes(data, path, m.Highlight(v.Str))
		if err != nil {
			continue
		}
		data = updated
		matched = true
	}
	if !matched {
		return c, false
	}

	var out card.Card
	if err := json.Unmarshal(data, &out); err != nil {
		return c, true
	}
	return out, true
}
