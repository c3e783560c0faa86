// Package pipeline runs the card collection through its fixed stage order:
// merge, bookmarks, date range, filter, search, sort, truncate, paginate.
//
// Run is a pure function of its inputs. Callers recompute on every state
// change (filter toggle, query edit, sort change, page change, fetch).
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/filter"
	"github.com/abelbrown/consonant/internal/search"
	"github.com/abelbrown/consonant/internal/sorting"
)

// PaginationType selects how the truncated set is windowed.
type PaginationType string

const (
	Paginator PaginationType = "paginator"
	LoadMore  PaginationType = "loadMore"
	Carousel  PaginationType = "carousel"
)

// Config is the authored, per-collection part of the pipeline input.
type Config struct {
	// SeedKey keys the random sort, usually the collection id.
	SeedKey     string
	FeaturedIDs []string
	// FeaturedFirst pins featured cards ahead of every non-random sort.
	FeaturedFirst bool

	OnlyShowBookmarks   bool
	RestrictToDateRange bool

	FilterType  filter.Type
	Categories  []string
	EventFilter string

	SearchFields []string

	Reservoir sorting.Reservoir
	// TotalCardsToShow caps the result. Zero or negative means no cap.
	TotalCardsToShow int

	PaginationEnabled bool
	Pagination        PaginationType
	ResultsPerPage    int
	CarouselVisible   int
}

// State is the user-driven part of the pipeline input. It is what the URL
// state adapter encodes.
type State struct {
	ActiveFilterIDs []string
	Query           string
	Sort            sorting.Option
	// Page is 1-based. For carousels it is the first visible slide.
	Page          int
	ShowBookmarks bool
	BookmarkedIDs []string
	// Now is the reference time for date ranges and event timing.
	// Zero means time.Now().
	Now time.Time
}

// Result is one render cycle's output.
type Result struct {
	// Cards is the visible window.
	Cards []card.Card
	// Total counts the cards after truncation, before windowing.
	Total         int
	TotalPages    int
	Page          int
	ShowPaginator bool
	// NextTransition is when event-sorted cards must be re-evaluated.
	// Zero means never.
	NextTransition time.Duration
}

// Run executes every stage over raw and returns the visible window.
// Errors are limited to invalid filter or sort types.
func Run(raw []card.Card, cfg Config, st State) (Result, error) {
	now := st.Now
	if now.IsZero() {
		now = time.Now()
	}

	cards := card.ProcessCards(card.FeaturedCards(cfg.FeaturedIDs, raw), raw)

	cards = card.KeepBookmarkedOnly(cards, cfg.OnlyShowBookmarks, st.BookmarkedIDs, st.ShowBookmarks)

	if cfg.RestrictToDateRange {
		cards = card.KeepWithinDateRange(cards, now)
	}

	cards, err := filter.Cards(cards, st.ActiveFilterIDs, nil, cfg.FilterType, cfg.Categories)
	if err != nil {
		return Result{}, fmt.Errorf("filter stage: %w", err)
	}

	if strings.TrimSpace(st.Query) != "" {
		cards = search.Filter(cards, st.Query, cfg.SearchFields)
	}

	sorted, err := sorting.Cards(cards, st.Sort, sorting.Params{
		FeaturedIDs:   cfg.FeaturedIDs,
		FeaturedFirst: cfg.FeaturedFirst,
		Reservoir:     cfg.Reservoir,
		SeedKey:       cfg.SeedKey,
		EventFilter:   cfg.EventFilter,
		Now:           now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("sort stage: %w", err)
	}

	limit := cfg.TotalCardsToShow
	if limit <= 0 {
		limit = -1
	}
	cards = card.Truncate(sorted.Cards, limit)

	res := paginate(cards, cfg, st.Page)
	res.NextTransition = sorted.NextTransition
	// highlight only the visible window; earlier stages see clean text
	if strings.TrimSpace(st.Query) != "" {
		res.Cards = search.Highlight(res.Cards, st.Query, cfg.SearchFields)
	}
	return res, nil
}

func paginate(cards []card.Card, cfg Config, page int) Result {
	total := len(cards)
	res := Result{Cards: cards, Total: total, TotalPages: 1, Page: 1}
	if !cfg.PaginationEnabled {
		return res
	}

	switch cfg.Pagination {
	case LoadMore:
		if cfg.ResultsPerPage <= 0 {
			return res
		}
		res.Page = max(page, 1)
		res.TotalPages = TotalPages(cfg.ResultsPerPage, total)
		res.Cards = card.Truncate(cards, NumCardsToShow(cfg.ResultsPerPage, res.Page, total))
	case Carousel:
		res.Cards, res.Page = CarouselWindow(cards, page, cfg.CarouselVisible)
		if cfg.CarouselVisible > 0 {
			res.TotalPages = max(total-cfg.CarouselVisible+1, 1)
		}
	default:
		if cfg.ResultsPerPage <= 0 {
			return res
		}
		res.TotalPages = TotalPages(cfg.ResultsPerPage, total)
		res.Page = min(max(page, 1), max(res.TotalPages, 1))
		start := min((res.Page-1)*cfg.ResultsPerPage, total)
		end := min(start+cfg.ResultsPerPage, total)
		res.Cards = append([]card.Card{}, cards[start:end]...)
		res.ShowPaginator = ShouldDisplayPaginator(true, cfg.ResultsPerPage, total)
	}
	return res
}
