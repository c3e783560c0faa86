// Package eventtiming classifies session cards into time buckets and works
// out when the next bucket transition happens.
package eventtiming

import (
	"regexp"
	"time"

	"github.com/abelbrown/consonant/internal/card"
)

// Bucket is the time category of a session relative to now.
// The numeric order is the display order.
type Bucket int

const (
	OnDemand Bucket = iota
	Live
	Upcoming
	NotTimed
)

func (b Bucket) String() string {
	switch b {
	case OnDemand:
		return "on-demand"
	case Live:
		return "live"
	case Upcoming:
		return "upcoming"
	case NotTimed:
		return "not-timed"
	default:
		return "unknown"
	}
}

var (
	// A live-expired session is on demand whatever its window says.
	liveExpiredRe = regexp.MustCompile(`live-expired`)
	// An on-demand-scheduled session skips the live bucket: it is upcoming
	// until it starts and on demand afterwards.
	onDemandScheduledRe = regexp.MustCompile(`on-demand-scheduled`)
)

// Session is the timing view of a card.
type Session struct {
	ID        string
	StartDate string
	EndDate   string
	Tags      []card.Tag
}

// FromCard builds the session of an event card from its dateDetailText.
func FromCard(c card.Card) Session {
	return Session{
		ID:        c.ID,
		StartDate: c.ContentArea.DateDetailText.StartTime,
		EndDate:   c.ContentArea.DateDetailText.EndTime,
		Tags:      c.Tags,
	}
}

// Classify returns the bucket of s at now. Missing or malformed dates give
// NotTimed unless a tag forces the bucket.
func Classify(s Session, now time.Time) Bucket {
	start, okStart := card.ParseTime(s.StartDate)
	end, okEnd := card.ParseTime(s.EndDate)

	switch {
	case card.HasTag(liveExpiredRe, s.Tags):
		return OnDemand
	case card.HasTag(onDemandScheduledRe, s.Tags):
		if okStart && now.Before(start) {
			return Upcoming
		}
		return OnDemand
	case !okStart || !okEnd:
		return NotTimed
	case now.Before(start):
		return Upcoming
	case now.After(end):
		return OnDemand
	default:
		return Live
	}
}

// nextBoundary returns the time until the nearest start or end of s that is
// still ahead of now.
func nextBoundary(s Session, now time.Time) (time.Duration, bool) {
	if card.HasTag(liveExpiredRe, s.Tags) {
		return 0, false
	}

	var (
		best  time.Duration
		found bool
	)
	consider := func(raw string) {
		t, ok := card.ParseTime(raw)
		if !ok || !t.After(now) {
			return
		}
		if d := t.Sub(now); !found || d < best {
			best, found = d, true
		}
	}

	consider(s.StartDate)
	if !card.HasTag(onDemandScheduledRe, s.Tags) {
		consider(s.EndDate)
	}
	return best, found
}

// Result is the ordered output of Order.
//
// NextTransition is the delay until the nearest future boundary across all
// sessions. Zero means no session changes bucket later and no re-evaluation
// needs scheduling.
type Result[T any] struct {
	Visible        []T
	NextTransition time.Duration
}

// Order sorts items on-demand, live, upcoming, not-timed. Relative order
// within a bucket is kept.
func Order[T any](items []T, session func(T) Session, now time.Time) Result[T] {
	var buckets [NotTimed + 1][]T
	var next time.Duration

	for _, it := range items {
		s := session(it)
		b := Classify(s, now)
		buckets[b] = append(buckets[b], it)

		if d, ok := nextBoundary(s, now); ok && (next == 0 || d < next) {
			next = d
		}
	}

	visible := make([]T, 0, len(items))
	for _, b := range buckets {
		visible = append(visible, b...)
	}
	return Result[T]{Visible: visible, NextTransition: next}
}

// Timing orders plain sessions.
func Timing(sessions []Session, now time.Time) Result[Session] {
	return Order(sessions, func(s Session) Session { return s }, now)
}

// Cards orders event cards by their dateDetailText window.
func Cards(cards []card.Card, now time.Time) Result[card.Card] {
	return Order(cards, FromCard, now)
}
