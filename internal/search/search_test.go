package search

import (
	"strings"
	"testing"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/google/go-cmp/cmp"
)

func titled(id, title, desc string) card.Card {
	return card.Card{ID: id, ContentArea: card.ContentArea{Title: title, Description: desc}}
}

func TestCardsShortQueryMatchesNothing(t *testing.T) {
	cards := []card.Card{titled("1", "title name", ""), titled("2", "12 monkeys", "")}

	for _, q := range []string{"", "12", "  na  "} {
		got := Cards(cards, q, []string{"contentArea.title"})
		if got == nil || len(got) != 0 {
			t.Errorf("query %q: expected empty non-nil result, got %v", q, got)
		}
	}
}

func TestCardsHighlightsMatchingField(t *testing.T) {
	cards := []card.Card{
		titled("1", "title name", ""),
		titled("2", "", "description"),
		titled("3", "some string", ""),
	}

	got := Cards(cards, "name", []string{"contentArea.title"})
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only card 1, got %v", got)
	}
	want := `title <span data-testid="consonant-SearchResult" class="consonant-SearchResult">name</span>`
	if got[0].ContentArea.Title != want {
		t.Errorf("unexpected highlight:\n got %s\nwant %s", got[0].ContentArea.Title, want)
	}
}

func TestCardsCaseInsensitivePreservesCase(t *testing.T) {
	cards := []card.Card{titled("1", "Photoshop and PHOTOSHOP", "")}

	got := Cards(cards, "photoshop", []string{"contentArea.title"})
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	title := got[0].ContentArea.Title
	if strings.Count(title, HighlightClass+`">`) != 2 {
		t.Errorf("expected both occurrences highlighted, got %s", title)
	}
	if !strings.Contains(title, ">Photoshop</span>") || !strings.Contains(title, ">PHOTOSHOP</span>") {
		t.Errorf("original case not preserved: %s", title)
	}
}

func TestCardsNonMatchingFieldsPassThrough(t *testing.T) {
	cards := []card.Card{titled("1", "alpha beta", "gamma &amp; delta")}

	got := Cards(cards, "beta", []string{"contentArea.title", "contentArea.description"})
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	if got[0].ContentArea.Description != "gamma &amp; delta" {
		t.Errorf("non-matching field changed: %q", got[0].ContentArea.Description)
	}
	if cards[0].ContentArea.Title != "alpha beta" {
		t.Error("input card modified")
	}
}

func TestCardsSearchesSanitizedText(t *testing.T) {
	cards := []card.Card{titled("1", "Tips &amp; Tricks", "")}

	if got := Cards(cards, "s & t", []string{"contentArea.title"}); len(got) != 1 {
		t.Fatalf("expected entity-unescaped match, got %d", len(got))
	}
}

func TestCardsNestedAndDefaultFields(t *testing.T) {
	cards := []card.Card{
		{ID: "1", Tags: []card.Tag{{ID: "caas:product/lightroom", Label: "Lightroom"}}},
		titled("2", "", "Lightroom presets"),
	}

	got := Cards(cards, "lightroom", []string{"tags.0.label"})
	if diff := cmp.Diff([]string{"1"}, ids(got)); diff != "" {
		t.Errorf("nested path mismatch (-want +got):\n%s", diff)
	}

	got = Cards(cards, "lightroom", nil)
	if diff := cmp.Diff([]string{"2"}, ids(got)); diff != "" {
		t.Errorf("default fields mismatch (-want +got):\n%s", diff)
	}
}

func TestHighlightCardMissingField(t *testing.T) {
	c := titled("1", "", "title name")

	got := HighlightCard(c, "contentArea.title", "name")
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("expected card unchanged (-want +got):\n%s", diff)
	}
}

func ids(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestCardsEscapesHighlightedText(t *testing.T) {
	cards := []card.Card{titled("1", "Tom &lt;img src=x onerror=alert(1)&gt; Jerry", "")}

	got := Cards(cards, "jerry", []string{"contentArea.title"})
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	want := "Tom &lt;img src=x onerror=alert(1)&gt; " + HighlightOpen + "Jerry" + HighlightClose
	if got[0].ContentArea.Title != want {
		t.Errorf("unexpected highlight:\n got %s\nwant %s", got[0].ContentArea.Title, want)
	}
}

func TestCardsEscapesMatchedEntities(t *testing.T) {
	cards := []card.Card{titled("1", "Tips &amp; Tricks", "")}

	got := Cards(cards, "s & t", []string{"contentArea.title"})
	if len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
	want := "Tip" + HighlightOpen + "s &amp; T" + HighlightClose + "ricks"
	if got[0].ContentArea.Title != want {
		t.Errorf("unexpected highlight:\n got %s\nwant %s", got[0].ContentArea.Title, want)
	}
}

func TestFilterLeavesCardsUnmodified(t *testing.T) {
	cards := []card.Card{titled("1", "title name", ""), titled("2", "other", "")}

	got := Filter(cards, "name", []string{"contentArea.title"})
	if diff := cmp.Diff(cards[:1], got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got := Filter(cards, "na", nil); got == nil || len(got) != 0 {
		t.Errorf("short query: expected empty non-nil result, got %v", got)
	}
}

func TestHighlightShortQueryIsIdentity(t *testing.T) {
	cards := []card.Card{titled("1", "title name", "")}

	if diff := cmp.Diff(cards, Highlight(cards, "na", nil)); diff != "" {
		t.Errorf("expected cards unchanged (-want +got):\n%s", diff)
	}
}
