// Package coord runs collection loads in the background and feeds the
// results to the browser as messages.
package coord

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/store"
	"github.com/abelbrown/consonant/internal/telemetry"
	"github.com/abelbrown/consonant/internal/ui"
)

// refreshInterval is the time between background reloads.
const refreshInterval = 5 * time.Minute

// loader interface for dependency injection (testing).
type loader interface {
	Load(ctx context.Context, req fetch.Request, deliver func(fetch.Update)) error
}

// recorder persists bookmarks and the fetch history.
type recorder interface {
	RecordFetch(r store.FetchRecord) error
	ToggleBookmark(collection, cardID string) (bool, error)
}

// sender delivers messages to the running program. *tea.Program
// satisfies it.
type sender interface {
	Send(msg tea.Msg)
}

// Coordinator manages the loads of one collection.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	coll     *config.Collection
	loader   loader
	store    recorder
	beacon   *telemetry.Beacon
	interval time.Duration
	wg       sync.WaitGroup
}

// NewCoordinator creates a Coordinator. The beacon is optional.
func NewCoordinator(coll *config.Collection, l loader, s recorder, b *telemetry.Beacon) *Coordinator {
	return &Coordinator{
		coll:     coll,
		loader:   l,
		store:    s,
		beacon:   b,
		interval: refreshInterval,
	}
}

// Start reloads the collection every refresh interval and sends the
// results to program. The first load is left to the program's Init.
func (c *Coordinator) Start(ctx context.Context, program sender) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msg := c.load(ctx, program)
				if ctx.Err() != nil {
					return
				}
				program.Send(msg)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// LoadCmd returns the browser's load command. Partial results are sent
// through program as they arrive; the command's own message is the full
// result or the failure.
func (c *Coordinator) LoadCmd(ctx context.Context, program sender) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			return c.load(ctx, program)
		}
	}
}

// ToggleBookmarkCmd returns the browser's bookmark command.
func (c *Coordinator) ToggleBookmarkCmd() func(cardID string) tea.Cmd {
	return func(cardID string) tea.Cmd {
		return func() tea.Msg {
			on, err := c.store.ToggleBookmark(c.coll.Key(), cardID)
			return ui.BookmarkToggled{CardID: cardID, Bookmarked: on, Err: err}
		}
	}
}

func (c *Coordinator) load(ctx context.Context, program sender) tea.Msg {
	key := c.coll.Key()
	req := c.coll.FetchRequest()

	var full card.Feed
	err := c.loader.Load(ctx, req, func(u fetch.Update) {
		c.record(store.FetchRecord{
			Collection: key,
			Endpoint:   req.Endpoint,
			CardCount:  len(u.Feed.Cards),
			Partial:    u.Partial,
		})
		if u.Partial {
			if program != nil {
				program.Send(ui.CardsLoaded{Feed: u.Feed, Partial: true})
			}
			return
		}
		full = u.Feed
	})
	if err != nil {
		c.record(store.FetchRecord{Collection: key, Endpoint: req.Endpoint, Err: err.Error()})
		logging.Error("coord: load failed", "collection", key, "error", err)
		c.beacon.Log("Failed to load cards", req.Endpoint, err, "consonant,browse")
		return ui.LoadFailed{Err: err}
	}

	logging.Info("coord: loaded", "collection", key, "cards", len(full.Cards))
	return ui.CardsLoaded{Feed: full}
}

func (c *Coordinator) record(r store.FetchRecord) {
	if c.store == nil {
		return
	}
	if err := c.store.RecordFetch(r); err != nil {
		logging.Warn("coord: record fetch failed", "error", err)
	}
}
