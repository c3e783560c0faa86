package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/filter"
	"github.com/abelbrown/consonant/internal/search"
	"github.com/abelbrown/consonant/internal/sorting"
	"github.com/google/go-cmp/cmp"
)

var testNow = time.Date(2023, 10, 1, 10, 30, 0, 0, time.UTC)

func ids(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func sampleCards() []card.Card {
	cards := make([]card.Card, 0, 10)
	for i := 1; i <= 10; i++ {
		c := card.Card{
			ID:          fmt.Sprintf("c%02d", i),
			CardDate:    fmt.Sprintf("2023-01-%02d", i),
			ContentArea: card.ContentArea{Title: fmt.Sprintf("Card %02d", i)},
		}
		if i%2 == 0 {
			c.Tags = append(c.Tags, card.Tag{ID: "type/even"})
		} else {
			c.Tags = append(c.Tags, card.Tag{ID: "type/odd"})
		}
		if i <= 3 {
			c.Tags = append(c.Tags, card.Tag{ID: "product/photoshop"})
			c.ContentArea.Description = "Photoshop tutorial"
		}
		cards = append(cards, c)
	}
	return cards
}

func baseConfig() Config {
	return Config{SeedKey: "test-collection", FilterType: filter.And}
}

func TestRunDefaultsReturnEverything(t *testing.T) {
	res, err := Run(sampleCards(), baseConfig(), State{Sort: sorting.Option{Sort: sorting.DateAsc}, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Total != 10 || len(res.Cards) != 10 {
		t.Errorf("expected all 10 cards, got total=%d visible=%d", res.Total, len(res.Cards))
	}
	if res.NextTransition != 0 {
		t.Errorf("expected no transition, got %v", res.NextTransition)
	}
}

func TestRunStageOrder(t *testing.T) {
	cfg := baseConfig()
	cfg.TotalCardsToShow = 4
	cfg.PaginationEnabled = true
	cfg.Pagination = Paginator
	cfg.ResultsPerPage = 3

	st := State{
		ActiveFilterIDs: []string{"type/even"},
		Sort:            sorting.Option{Sort: sorting.DateDesc},
		Page:            2,
		Now:             testNow,
	}

	res, err := Run(sampleCards(), cfg, st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// even cards, newest first: c10 c08 c06 c04 (truncated from 5), page 2 of 2.
	if diff := cmp.Diff([]string{"c04"}, ids(res.Cards)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if res.Total != 4 || res.TotalPages != 2 || res.Page != 2 || !res.ShowPaginator {
		t.Errorf("unexpected paging: %+v", res)
	}
}

func TestRunSearch(t *testing.T) {
	st := State{Query: "photoshop", Sort: sorting.Option{Sort: sorting.TitleDesc}, Now: testNow}

	res, err := Run(sampleCards(), baseConfig(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c03", "c02", "c01"}, ids(res.Cards)); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}

	st.Query = "ph"
	res, err = Run(sampleCards(), baseConfig(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Cards) != 0 {
		t.Errorf("short query should match nothing, got %v", ids(res.Cards))
	}
}

func TestRunSearchSortsOnCleanTitles(t *testing.T) {
	cards := []card.Card{
		{ID: "a", ContentArea: card.ContentArea{Title: "Apple cake", Description: "banana inside"}},
		{ID: "b", ContentArea: card.ContentArea{Title: "Banana bread"}},
	}
	cfg := baseConfig()
	cfg.SearchFields = []string{"contentArea.title", "contentArea.description"}

	for _, tt := range []struct {
		sort sorting.Type
		want []string
	}{
		{sorting.TitleDesc, []string{"b", "a"}},
		{sorting.TitleAsc, []string{"a", "b"}},
	} {
		res, err := Run(cards, cfg, State{Query: "banana", Sort: sorting.Option{Sort: tt.sort}, Now: testNow})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if diff := cmp.Diff(tt.want, ids(res.Cards)); diff != "" {
			t.Errorf("%s order mismatch (-want +got):\n%s", tt.sort, diff)
		}
	}
}

func TestRunHighlightsVisibleWindowOnly(t *testing.T) {
	cfg := baseConfig()
	cfg.PaginationEnabled = true
	cfg.Pagination = Paginator
	cfg.ResultsPerPage = 2
	cfg.SearchFields = []string{"contentArea.description"}
	raw := sampleCards()

	res, err := Run(raw, cfg, State{Query: "photoshop", Sort: sorting.Option{Sort: sorting.DateAsc}, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c01", "c02"}, ids(res.Cards)); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
	for _, c := range res.Cards {
		if !strings.Contains(c.ContentArea.Description, search.HighlightOpen) {
			t.Errorf("card %s not highlighted: %q", c.ID, c.ContentArea.Description)
		}
	}
	if raw[0].ContentArea.Description != "Photoshop tutorial" {
		t.Error("input card modified")
	}
}

func TestRunFeaturedMergedOnce(t *testing.T) {
	cfg := baseConfig()
	cfg.FeaturedIDs = []string{"c05"}

	res, err := Run(sampleCards(), cfg, State{Sort: sorting.Option{Sort: sorting.Featured}, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Total != 10 {
		t.Fatalf("featured card duplicated: total=%d", res.Total)
	}
	if res.Cards[0].ID != "c05" || !res.Cards[0].IsFeatured {
		t.Errorf("expected featured c05 first, got %+v", res.Cards[0])
	}
}

func TestRunBookmarks(t *testing.T) {
	st := State{
		Sort:          sorting.Option{Sort: sorting.DateAsc},
		BookmarkedIDs: []string{"c07", "c02"},
		Now:           testNow,
	}

	res, err := Run(sampleCards(), baseConfig(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Cards) != 10 || !res.Cards[1].IsBookmarked {
		t.Errorf("expected all cards with c02 stamped")
	}

	st.ShowBookmarks = true
	res, err = Run(sampleCards(), baseConfig(), st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c02", "c07"}, ids(res.Cards)); diff != "" {
		t.Errorf("bookmark mismatch (-want +got):\n%s", diff)
	}
}

func TestRunDateRange(t *testing.T) {
	cards := []card.Card{
		{ID: "visible"},
		{ID: "expired", ShowCard: card.ShowCard{Until: "2023-09-01"}},
	}
	cfg := baseConfig()
	st := State{Sort: sorting.Option{Sort: sorting.DateAsc}, Now: testNow}

	res, _ := Run(cards, cfg, st)
	if len(res.Cards) != 2 {
		t.Errorf("date range should be ignored unless configured")
	}

	cfg.RestrictToDateRange = true
	res, _ = Run(cards, cfg, st)
	if diff := cmp.Diff([]string{"visible"}, ids(res.Cards)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRunEventSortTransition(t *testing.T) {
	cards := []card.Card{
		{ID: "upcoming", ContentArea: card.ContentArea{DateDetailText: card.DateDetail{StartTime: "2023-10-01T11:00:00Z", EndTime: "2023-10-01T12:00:00Z"}}},
		{ID: "past", ContentArea: card.ContentArea{DateDetailText: card.DateDetail{StartTime: "2023-09-01T11:00:00Z", EndTime: "2023-09-01T12:00:00Z"}}},
	}

	res, err := Run(cards, baseConfig(), State{Sort: sorting.Option{Sort: sorting.EventSort}, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"past", "upcoming"}, ids(res.Cards)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if res.NextTransition != 30*time.Minute {
		t.Errorf("expected 30m transition, got %v", res.NextTransition)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := baseConfig()
	cfg.FilterType = filter.Type("nand")
	_, err := Run(sampleCards(), cfg, State{ActiveFilterIDs: []string{"type/odd"}, Sort: sorting.Option{Sort: sorting.DateAsc}})
	if !errors.Is(err, filter.ErrInvalidFilterType) {
		t.Errorf("expected ErrInvalidFilterType, got %v", err)
	}

	_, err = Run(sampleCards(), baseConfig(), State{Sort: sorting.Option{Sort: "popular"}})
	if !errors.Is(err, sorting.ErrInvalidSortType) {
		t.Errorf("expected ErrInvalidSortType, got %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := baseConfig()
	cfg.Reservoir = sorting.Reservoir{Sample: 4, Pool: 8}
	cfg.PaginationEnabled = true
	cfg.Pagination = LoadMore
	cfg.ResultsPerPage = 2
	st := State{Sort: sorting.Option{Sort: sorting.Random}, Page: 2, Now: testNow}

	first, err := Run(sampleCards(), cfg, st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := Run(sampleCards(), cfg, st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("pipeline not idempotent (-first +second):\n%s", diff)
	}
	if len(first.Cards) != 4 || first.Total != 4 {
		t.Errorf("expected load-more window of 4 out of 4, got %d of %d", len(first.Cards), first.Total)
	}
}

func TestRunDoesNotModifyInput(t *testing.T) {
	raw := sampleCards()
	before := sampleCards()
	cfg := baseConfig()
	cfg.FeaturedIDs = []string{"c01"}

	_, err := Run(raw, cfg, State{Query: "photoshop", BookmarkedIDs: []string{"c01"}, Sort: sorting.Option{Sort: sorting.Featured}, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff(before, raw); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}

func TestCarouselWindow(t *testing.T) {
	cfg := baseConfig()
	cfg.PaginationEnabled = true
	cfg.Pagination = Carousel
	cfg.CarouselVisible = 3

	res, err := Run(sampleCards(), cfg, State{Sort: sorting.Option{Sort: sorting.DateAsc}, Page: 9, Now: testNow})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]string{"c08", "c09", "c10"}, ids(res.Cards)); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}
	if res.Page != 8 || res.TotalPages != 8 {
		t.Errorf("expected clamped position 8 of 8, got %d of %d", res.Page, res.TotalPages)
	}
}

func TestPagingHelpers(t *testing.T) {
	paginatorTests := []struct {
		enabled bool
		perPage int
		total   int
		want    bool
	}{
		{true, 10, 20, true},
		{true, 10, 10, false},
		{false, 10, 20, false},
		{true, 0, 20, false},
	}
	for _, tt := range paginatorTests {
		if got := ShouldDisplayPaginator(tt.enabled, tt.perPage, tt.total); got != tt.want {
			t.Errorf("ShouldDisplayPaginator(%v, %d, %d) = %v, want %v", tt.enabled, tt.perPage, tt.total, got, tt.want)
		}
	}

	if got := NumCardsToShow(10, 2, 15); got != 15 {
		t.Errorf("NumCardsToShow(10, 2, 15) = %d, want 15", got)
	}
	if got := NumCardsToShow(5, 2, 15); got != 10 {
		t.Errorf("NumCardsToShow(5, 2, 15) = %d, want 10", got)
	}

	totalPagesTests := []struct{ perPage, total, want int }{
		{10, 25, 3},
		{10, 20, 2},
		{10, 0, 0},
		{0, 25, 0},
	}
	for _, tt := range totalPagesTests {
		if got := TotalPages(tt.perPage, tt.total); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.perPage, tt.total, got, tt.want)
		}
	}
}
