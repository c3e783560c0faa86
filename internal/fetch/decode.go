package fetch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/consonant/internal/card"
)

// Decode parses a feed body. JSON objects are read as card.Feed; anything
// else is handed to the RSS/Atom parser.
func Decode(body []byte) (card.Feed, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var feed card.Feed
		if err := json.Unmarshal(trimmed, &feed); err != nil {
			return card.Feed{}, fmt.Errorf("failed to parse card feed: %w", err)
		}
		if feed.Cards == nil {
			feed.Cards = []card.Card{}
		}
		if feed.TotalCount == 0 {
			feed.TotalCount = len(feed.Cards)
		}
		return feed, nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(trimmed))
	if err != nil {
		return card.Feed{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	cards := make([]card.Card, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		cards = append(cards, convertFeedItem(it))
	}
	return card.Feed{Cards: cards, TotalCount: len(cards)}, nil
}

// convertFeedItem converts a gofeed.Item to a card.
func convertFeedItem(it *gofeed.Item) card.Card {
	summary := it.Description
	if summary == "" && it.Content != "" {
		summary = truncate(it.Content, 500)
	}

	c := card.Card{
		ID:      generateID(it),
		CTALink: it.Link,
		ContentArea: card.ContentArea{
			Title:       it.Title,
			Description: summary,
		},
	}
	if it.PublishedParsed != nil {
		c.CardDate = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if it.UpdatedParsed != nil {
		c.Modified = it.UpdatedParsed.UTC().Format(time.RFC3339)
	} else {
		c.Modified = c.CardDate
	}
	if it.Author != nil && it.Author.Name != "" {
		c.ContentArea.DetailText = it.Author.Name
	}
	for _, cat := range it.Categories {
		c.Tags = append(c.Tags, card.Tag{ID: cat, Label: cat})
	}
	return c
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(it *gofeed.Item) string {
	if it.GUID != "" {
		return hashString(it.GUID)
	}
	if it.Link != "" {
		return hashString(it.Link)
	}
	key := it.Title
	if it.PublishedParsed != nil {
		key += it.PublishedParsed.String()
	}
	return hashString(key)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
