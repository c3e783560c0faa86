package card

import "time"

// JoinCardSets concatenates two card sets into a new slice.
func JoinCardSets(a, b []Card) []Card {
	result := make([]Card, 0, len(a)+len(b))
	result = append(result, a...)
	result = append(result, b...)
	return result
}

// Dedup removes cards with duplicate IDs. First occurrence wins.
// Cards without an ID are always kept.
func Dedup(cards []Card) []Card {
	if len(cards) == 0 {
		return []Card{}
	}

	seen := make(map[string]bool, len(cards))
	result := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.ID != "" {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
		}
		result = append(result, c)
	}
	return result
}

// ProcessCards merges the featured cards in front of the raw feed cards and
// drops duplicates, so a featured card never appears twice.
func ProcessCards(featured, raw []Card) []Card {
	return Dedup(JoinCardSets(featured, raw))
}

// FeaturedCards returns the cards whose id is listed in ids, in the order of
// ids, each stamped IsFeatured. Unknown ids are skipped.
func FeaturedCards(ids []string, cards []Card) []Card {
	if len(ids) == 0 || len(cards) == 0 {
		return []Card{}
	}

	byID := make(map[string]Card, len(cards))
	for _, c := range cards {
		if _, ok := byID[c.ID]; !ok {
			byID[c.ID] = c
		}
	}

	result := make([]Card, 0, len(ids))
	emitted := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || emitted[id] {
			continue
		}
		emitted[id] = true
		c.IsFeatured = true
		result = append(result, c)
	}
	return result
}

// UpdateBookmarkData returns a copy of cards with IsBookmarked set from the
// bookmark id set.
func UpdateBookmarkData(cards []Card, bookmarkedIDs []string) []Card {
	marked := make(map[string]bool, len(bookmarkedIDs))
	for _, id := range bookmarkedIDs {
		marked[id] = true
	}

	result := make([]Card, len(cards))
	for i, c := range cards {
		c.IsBookmarked = marked[c.ID]
		result[i] = c
	}
	return result
}

// BookmarkedCards keeps only the cards stamped IsBookmarked.
func BookmarkedCards(cards []Card) []Card {
	result := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.IsBookmarked {
			result = append(result, c)
		}
	}
	return result
}

// KeepBookmarkedOnly restricts cards to bookmarks when onlyShowBookmarks is
// set, or when the user toggled the bookmarks view (showBookmarks).
// Cards are stamped from bookmarkedIDs in either case.
func KeepBookmarkedOnly(cards []Card, onlyShowBookmarks bool, bookmarkedIDs []string, showBookmarks bool) []Card {
	stamped := UpdateBookmarkData(cards, bookmarkedIDs)
	if onlyShowBookmarks || showBookmarks {
		return BookmarkedCards(stamped)
	}
	return stamped
}

// KeepWithinDateRange drops cards whose showCard window excludes now.
// Missing or malformed bounds are treated as open.
func KeepWithinDateRange(cards []Card, now time.Time) []Card {
	result := make([]Card, 0, len(cards))
	for _, c := range cards {
		if from, ok := ParseTime(c.ShowCard.From); ok && now.Before(from) {
			continue
		}
		if until, ok := ParseTime(c.ShowCard.Until); ok && now.After(until) {
			continue
		}
		result = append(result, c)
	}
	return result
}

// Truncate returns the first n cards, or all cards when n is negative or
// not smaller than len(cards).
func Truncate(cards []Card, n int) []Card {
	if n < 0 || n >= len(cards) {
		n = len(cards)
	}
	result := make([]Card, n)
	copy(result, cards[:n])
	return result
}
