package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/filter"
	"github.com/abelbrown/consonant/internal/pipeline"
	"github.com/abelbrown/consonant/internal/sorting"
)

// Collection is an authored card collection: the data-config blob of a
// mount element, or a standalone JSON/YAML file.
type Collection struct {
	ID          string             `json:"id,omitempty" yaml:"id,omitempty"`
	Collection  CollectionSettings `json:"collection" yaml:"collection"`
	FilterPanel FilterPanel        `json:"filterPanel" yaml:"filterPanel"`
	Sort        SortSettings       `json:"sort" yaml:"sort"`
	Search      SearchSettings     `json:"search" yaml:"search"`
	Pagination  PaginationSettings `json:"pagination" yaml:"pagination"`
	Bookmarks   BookmarkSettings   `json:"bookmarks" yaml:"bookmarks"`
}

// CollectionSettings locates the card feed and bounds the result.
type CollectionSettings struct {
	Endpoint            string       `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	FallbackEndpoint    string       `json:"fallbackEndpoint,omitempty" yaml:"fallbackEndpoint,omitempty" validate:"omitempty,url"`
	ResultsPerPage      int          `json:"resultsPerPage" yaml:"resultsPerPage" validate:"gte=0"`
	TotalCardsToShow    int          `json:"totalCardsToShow" yaml:"totalCardsToShow" validate:"gte=0"`
	Reservoir           Reservoir    `json:"reservoir" yaml:"reservoir"`
	PartialLoad         PartialLoad  `json:"partialLoadWithBackgroundFetch" yaml:"partialLoadWithBackgroundFetch"`
	FeaturedCards       []string     `json:"featuredCards,omitempty" yaml:"featuredCards,omitempty"`
	ShowTotalResults    bool         `json:"showTotalResults" yaml:"showTotalResults"`
	RestrictToDateRange bool         `json:"restrictToDateRange" yaml:"restrictToDateRange"`
}

// Reservoir bounds the random sort.
type Reservoir struct {
	Sample int `json:"sample" yaml:"sample" validate:"gte=0"`
	Pool   int `json:"pool" yaml:"pool" validate:"gte=0"`
}

// PartialLoad enables a small first fetch ahead of the full one.
type PartialLoad struct {
	Enabled          bool `json:"enabled" yaml:"enabled"`
	PartialLoadCount int  `json:"partialLoadCount" yaml:"partialLoadCount" validate:"required_if=Enabled true,gte=0"`
}

// FilterPanel holds the authored filters and how they combine.
type FilterPanel struct {
	Enabled     bool            `json:"enabled" yaml:"enabled"`
	FilterLogic string          `json:"filterLogic,omitempty" yaml:"filterLogic,omitempty" validate:"omitempty,filterlogic"`
	Categories  []string        `json:"categories,omitempty" yaml:"categories,omitempty"`
	EventFilter string          `json:"eventFilter,omitempty" yaml:"eventFilter,omitempty"`
	Filters     []filter.Filter `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// SortSettings holds the sort menu.
type SortSettings struct {
	DefaultSort   string       `json:"defaultSort,omitempty" yaml:"defaultSort,omitempty" validate:"omitempty,sorttype"`
	Options       []SortOption `json:"options,omitempty" yaml:"options,omitempty" validate:"dive"`
	FeaturedFirst bool         `json:"isFeaturedMode" yaml:"isFeaturedMode"`
}

// SortOption is one entry of the sort menu.
type SortOption struct {
	Sort  string `json:"sort" yaml:"sort" validate:"required,sorttype"`
	Label string `json:"label" yaml:"label"`
}

// SearchSettings enables free-text search.
type SearchSettings struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	SearchFields []string `json:"searchFields,omitempty" yaml:"searchFields,omitempty"`
}

// PaginationSettings selects the windowing mode.
type PaginationSettings struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Type            string `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=paginator loadMore carousel"`
	CarouselVisible int    `json:"carouselVisible,omitempty" yaml:"carouselVisible,omitempty" validate:"gte=0"`
}

// BookmarkSettings controls bookmark display.
type BookmarkSettings struct {
	ShowOnCards       bool `json:"showOnCards" yaml:"showOnCards"`
	OnlyShowBookmarks bool `json:"onlyShowBookmarks" yaml:"onlyShowBookmarks"`
}

var collectionValidator = NewValidator()

// ParseCollection decodes a JSON or YAML collection config and validates it.
func ParseCollection(data []byte) (*Collection, error) {
	var c Collection
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("parse collection json: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &c); err != nil {
		return nil, fmt.Errorf("parse collection yaml: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCollection reads and parses a collection config file.
func LoadCollection(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	return ParseCollection(data)
}

// Validate checks field constraints.
func (c *Collection) Validate() error {
	if err := collectionValidator.Struct(c); err != nil {
		return collectionValidator.describe(err)
	}
	return nil
}

// Key identifies the collection for bookmarks, caching and sampling.
func (c *Collection) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Collection.Endpoint
}

// FilterType returns the filter combination policy. Unset means OR. An
// unknown value is passed through as is so the filter stage rejects it
// with filter.ErrInvalidFilterType.
func (c *Collection) FilterType() filter.Type {
	if strings.TrimSpace(c.FilterPanel.FilterLogic) == "" {
		return filter.Or
	}
	t, err := filter.ParseType(c.FilterPanel.FilterLogic)
	if err != nil {
		return filter.Type(c.FilterPanel.FilterLogic)
	}
	return t
}

// SortOptions returns the sort menu, defaulting to date descending alone.
func (c *Collection) SortOptions() []sorting.Option {
	if len(c.Sort.Options) == 0 {
		return []sorting.Option{{Sort: sorting.DateDesc, Label: "Newest"}}
	}
	opts := make([]sorting.Option, 0, len(c.Sort.Options))
	for _, o := range c.Sort.Options {
		t, err := sorting.ParseType(o.Sort)
		if err != nil {
			continue
		}
		opts = append(opts, sorting.Option{Sort: t, Label: o.Label})
	}
	return opts
}

// DefaultSortOption returns defaultSort, else the first menu entry.
func (c *Collection) DefaultSortOption() sorting.Option {
	opts := c.SortOptions()
	if t, err := sorting.ParseType(c.Sort.DefaultSort); err == nil {
		for _, o := range opts {
			if o.Sort == t {
				return o
			}
		}
		return sorting.Option{Sort: t}
	}
	if len(opts) > 0 {
		return opts[0]
	}
	return sorting.Option{Sort: sorting.DateDesc}
}

// PipelineConfig maps the authored settings onto the pipeline.
func (c *Collection) PipelineConfig() pipeline.Config {
	cfg := pipeline.Config{
		SeedKey:             c.Key(),
		FeaturedIDs:         c.Collection.FeaturedCards,
		FeaturedFirst:       c.Sort.FeaturedFirst,
		OnlyShowBookmarks:   c.Bookmarks.OnlyShowBookmarks,
		RestrictToDateRange: c.Collection.RestrictToDateRange,
		FilterType:          c.FilterType(),
		Categories:          c.FilterPanel.Categories,
		EventFilter:         c.FilterPanel.EventFilter,
		Reservoir: sorting.Reservoir{
			Sample: c.Collection.Reservoir.Sample,
			Pool:   c.Collection.Reservoir.Pool,
		},
		TotalCardsToShow:  c.Collection.TotalCardsToShow,
		PaginationEnabled: c.Pagination.Enabled,
		Pagination:        pipeline.PaginationType(c.Pagination.Type),
		ResultsPerPage:    c.Collection.ResultsPerPage,
		CarouselVisible:   c.Pagination.CarouselVisible,
	}
	if cfg.Pagination == "" {
		cfg.Pagination = pipeline.Paginator
	}
	if c.Search.Enabled {
		cfg.SearchFields = c.Search.SearchFields
	}
	return cfg
}

// DefaultState is the view before any user interaction: authored filter
// selections, the default sort and the first page.
func (c *Collection) DefaultState() pipeline.State {
	st := pipeline.State{
		Sort: c.DefaultSortOption(),
		Page: 1,
	}
	if c.FilterPanel.Enabled {
		st.ActiveFilterIDs = filter.ActiveFilterIDs(c.FilterPanel.Filters)
	}
	return st
}

// FetchRequest describes how to load the collection's cards.
func (c *Collection) FetchRequest() fetch.Request {
	req := fetch.Request{
		Endpoint:         c.Collection.Endpoint,
		FallbackEndpoint: c.Collection.FallbackEndpoint,
	}
	if c.Collection.PartialLoad.Enabled {
		req.PartialLoadCount = c.Collection.PartialLoad.PartialLoadCount
	}
	return req
}
