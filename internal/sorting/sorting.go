// Package sorting orders card sets by one of the authored sort options.
package sorting

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/eventtiming"
)

// ErrInvalidSortType is returned for a sort key outside Type's values.
var ErrInvalidSortType = errors.New("invalid sort type")

// Type is the closed set of sort strategies.
type Type string

const (
	DateAsc      Type = "dateasc"
	DateDesc     Type = "datedesc"
	ModifiedAsc  Type = "modifiedasc"
	ModifiedDesc Type = "modifieddesc"
	TitleAsc     Type = "titleasc"
	TitleDesc    Type = "titledesc"
	Featured     Type = "featured"
	Random       Type = "random"
	EventSort    Type = "eventsort"
)

// Types lists every sort strategy in display order.
var Types = []Type{DateAsc, DateDesc, ModifiedAsc, ModifiedDesc, TitleAsc, TitleDesc, Featured, Random, EventSort}

// ParseType maps an authored sort key to a Type. Keys are case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortType, s)
}

// Option is an authored sort choice.
type Option struct {
	Sort  Type   `json:"sort" yaml:"sort"`
	Label string `json:"label" yaml:"label"`
}

// Reservoir configures random sampling: Sample cards are drawn from the
// first Pool cards. Zero or negative values mean "no cap".
type Reservoir struct {
	Sample int `json:"sample,omitempty" yaml:"sample,omitempty"`
	Pool   int `json:"pool,omitempty" yaml:"pool,omitempty"`
}

// Params carries the inputs some strategies need.
type Params struct {
	// FeaturedIDs are moved to the front by the featured sort.
	FeaturedIDs []string
	// FeaturedFirst pins FeaturedIDs ahead of date, modified and title sorts too.
	FeaturedFirst bool
	Reservoir     Reservoir
	// SeedKey keys the random sample, usually the collection id.
	SeedKey string
	// EventFilter restricts the event sort to cards carrying this tag id.
	EventFilter string
	// Now is the event timing reference. Zero means time.Now().
	Now time.Time
}

// Result is the ordered card set. NextTransition is only set by the event
// sort; zero means nothing needs re-evaluating.
type Result struct {
	Cards          []card.Card
	NextTransition time.Duration
}

// Cards orders cards by opt. The input slice is never modified.
func Cards(cards []card.Card, opt Option, p Params) (Result, error) {
	switch opt.Sort {
	case DateAsc:
		return pinned(byTime(cards, func(c card.Card) string { return c.CardDate }, false), p), nil
	case DateDesc:
		return pinned(byTime(cards, func(c card.Card) string { return c.CardDate }, true), p), nil
	case ModifiedAsc:
		return pinned(byTime(cards, func(c card.Card) string { return c.Modified }, false), p), nil
	case ModifiedDesc:
		return pinned(byTime(cards, func(c card.Card) string { return c.Modified }, true), p), nil
	case TitleAsc:
		return pinned(byTitle(cards, false), p), nil
	case TitleDesc:
		return pinned(byTitle(cards, true), p), nil
	case Featured:
		return Result{Cards: FeaturedSort(cards, p.FeaturedIDs)}, nil
	case Random:
		return Result{Cards: Sample(cards, p.SeedKey, p.Reservoir)}, nil
	case EventSort:
		now := p.Now
		if now.IsZero() {
			now = time.Now()
		}
		res := eventtiming.Cards(withTag(cards, p.EventFilter), now)
		return Result{Cards: res.Visible, NextTransition: res.NextTransition}, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidSortType, string(opt.Sort))
	}
}

func pinned(cards []card.Card, p Params) Result {
	if p.FeaturedFirst && len(p.FeaturedIDs) > 0 {
		cards = FeaturedSort(cards, p.FeaturedIDs)
	}
	return Result{Cards: cards}
}

// byTime stable-sorts on a timestamp field. Missing or malformed values
// compare as the zero time.
func byTime(cards []card.Card, field func(card.Card) string, desc bool) []card.Card {
	type keyed struct {
		c card.Card
		t time.Time
	}
	ks := make([]keyed, len(cards))
	for i, c := range cards {
		t, _ := card.ParseTime(field(c))
		ks[i] = keyed{c: c, t: t}
	}

	sort.SliceStable(ks, func(i, j int) bool {
		if desc {
			return ks[i].t.After(ks[j].t)
		}
		return ks[i].t.Before(ks[j].t)
	})

	result := make([]card.Card, len(ks))
	for i, k := range ks {
		result[i] = k.c
	}
	return result
}

// byTitle stable-sorts on the title using plain byte-wise comparison.
func byTitle(cards []card.Card, desc bool) []card.Card {
	result := make([]card.Card, len(cards))
	copy(result, cards)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].ContentArea.Title, result[j].ContentArea.Title
		if desc {
			return a > b
		}
		return a < b
	})
	return result
}

// FeaturedSort moves cards listed in featuredIDs to the front, stamping
// them IsFeatured. Both partitions keep their input order.
func FeaturedSort(cards []card.Card, featuredIDs []string) []card.Card {
	featured := make(map[string]bool, len(featuredIDs))
	for _, id := range featuredIDs {
		featured[id] = true
	}

	front := make([]card.Card, 0, len(featuredIDs))
	rest := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if featured[c.ID] {
			c.IsFeatured = true
			front = append(front, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(front, rest...)
}

func withTag(cards []card.Card, tagID string) []card.Card {
	if tagID == "" {
		return cards
	}
	result := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		if c.HasTagID(tagID) {
			result = append(result, c)
		}
	}
	return result
}
