// Package filter provides the pure card filter functions.
// All functions are simple: []card.Card in, []card.Card out. No side effects.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/consonant/internal/card"
)

// ErrInvalidFilterType is returned for a filter logic outside Type's values.
var ErrInvalidFilterType = errors.New("invalid filter type")

// Type is the policy used to combine active filters.
type Type string

const (
	And Type = "and"
	Or  Type = "or"
	// Xor keeps cards matching every active id. Authored collections rely on
	// this AND-like behavior, so it is not a textbook exclusive or.
	Xor Type = "xor"
)

// ParseType maps an authored filterLogic value ("and", "OR", ...) to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case And, Or, Xor:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilterType, s)
	}
}

// Item is a selectable leaf value of a filter.
type Item struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Selected bool   `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// Filter is an authored filter group. IDs are usually "panel/value".
type Filter struct {
	Group    string `json:"group" yaml:"group"`
	ID       string `json:"id" yaml:"id"`
	Items    []Item `json:"items,omitempty" yaml:"items,omitempty"`
	Selected bool   `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// ActiveFilterIDs returns the selected filter and item ids in authored
// order. Each id appears at most once.
func ActiveFilterIDs(filters []Filter) []string {
	seen := make(map[string]bool)
	result := []string{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		result = append(result, id)
	}

	for _, f := range filters {
		if f.Selected {
			add(f.ID)
		}
		for _, it := range f.Items {
			if it.Selected {
				add(it.ID)
			}
		}
	}
	return result
}

// Panel returns the panel of a filter id: the segment before the first "/".
func Panel(id string) string {
	if i := strings.Index(id, "/"); i >= 0 {
		return id[:i]
	}
	return id
}

// ActivePanels returns the distinct panels of the active ids, first seen first.
func ActivePanels(activeIDs []string) []string {
	seen := make(map[string]bool)
	panels := []string{}
	for _, id := range activeIDs {
		p := Panel(id)
		if !seen[p] {
			seen[p] = true
			panels = append(panels, p)
		}
	}
	return panels
}

// ByCategories keeps cards with at least one tag id starting with an
// allowed category prefix. A nil or empty allow-list keeps everything.
func ByCategories(cards []card.Card, categories []string) []card.Card {
	result := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if len(categories) == 0 || inCategories(c, categories) {
			result = append(result, c)
		}
	}
	return result
}

func inCategories(c card.Card, categories []string) bool {
	for _, t := range c.Tags {
		for _, cat := range categories {
			if strings.HasPrefix(t.ID, cat) {
				return true
			}
		}
	}
	return false
}

// Cards applies the active filters to cards using the combination policy t.
//
// With no active ids the (category restricted) input is returned and t is
// not inspected. activePanels may be nil, in which case the panels are
// derived from activeIDs.
func Cards(cards []card.Card, activeIDs, activePanels []string, t Type, categories []string) ([]card.Card, error) {
	scoped := ByCategories(cards, categories)
	if len(activeIDs) == 0 {
		return scoped, nil
	}
	if activePanels == nil {
		activePanels = ActivePanels(activeIDs)
	}

	var keep func(card.Card) bool
	switch t {
	case And, Xor:
		keep = func(c card.Card) bool { return matchesAll(c, activeIDs) }
	case Or:
		groups := groupByPanel(activeIDs)
		if len(activePanels) <= 1 || len(groups) <= 1 {
			keep = func(c card.Card) bool { return matchesAny(c, activeIDs) }
		} else {
			keep = func(c card.Card) bool {
				for _, g := range groups {
					if !matchesAny(c, g) {
						return false
					}
				}
				return true
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilterType, string(t))
	}

	result := make([]card.Card, 0, len(scoped))
	for _, c := range scoped {
		if keep(c) {
			result = append(result, c)
		}
	}
	return result, nil
}

// groupByPanel buckets ids per panel, in the order panels first appear.
func groupByPanel(ids []string) [][]string {
	index := make(map[string]int)
	var groups [][]string
	for _, id := range ids {
		p := Panel(id)
		i, ok := index[p]
		if !ok {
			i = len(groups)
			index[p] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], id)
	}
	return groups
}

func matchesAll(c card.Card, ids []string) bool {
	for _, id := range ids {
		if !c.HasTagID(id) {
			return false
		}
	}
	return true
}

func matchesAny(c card.Card, ids []string) bool {
	for _, id := range ids {
		if c.HasTagID(id) {
			return true
		}
	}
	return false
}
