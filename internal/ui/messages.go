// Package ui provides the Bubble Tea collection browser.
package ui

import "github.com/abelbrown/consonant/internal/card"

// CardsLoaded is sent for each fetch result. A partial result is ignored
// once the full one has arrived.
type CardsLoaded struct {
	Feed    card.Feed
	Partial bool
}

// LoadFailed is sent when the collection could not be fetched from any
// endpoint.
type LoadFailed struct {
	Err error
}

// BookmarkToggled is sent after a bookmark change was persisted.
type BookmarkToggled struct {
	CardID     string
	Bookmarked bool
	Err        error
}

// searchFire is the trailing edge of the search debounce. Stale
// generations are dropped.
type searchFire struct {
	gen int
}

// transitionFire asks for a re-evaluation when an event card changes
// bucket. Only the latest armed generation is honoured.
type transitionFire struct {
	gen int
}
