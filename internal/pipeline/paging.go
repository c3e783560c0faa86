package pipeline

import "github.com/abelbrown/consonant/internal/card"

// ShouldDisplayPaginator reports whether page controls are needed.
func ShouldDisplayPaginator(enabled bool, resultsPerPage, totalResults int) bool {
	return enabled && resultsPerPage > 0 && totalResults > resultsPerPage
}

// NumCardsToShow is the load-more window size after currentPage clicks.
func NumCardsToShow(resultsPerPage, currentPage, totalResults int) int {
	return min(resultsPerPage*currentPage, totalResults)
}

// TotalPages returns the page count, or 0 when resultsPerPage is not positive.
func TotalPages(resultsPerPage, totalResults int) int {
	if resultsPerPage <= 0 {
		return 0
	}
	return (totalResults + resultsPerPage - 1) / resultsPerPage
}

// CarouselWindow returns visible cards starting at slide position (1-based).
// The position is clamped so the window stays full when possible.
func CarouselWindow(cards []card.Card, position, visible int) ([]card.Card, int) {
	if visible <= 0 || visible >= len(cards) {
		return append([]card.Card{}, cards...), 1
	}
	position = min(max(position, 1), len(cards)-visible+1)
	start := position - 1
	return append([]card.Card{}, cards[start:start+visible]...), position
}
