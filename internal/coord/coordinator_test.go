package coord

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/goleak"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/store"
	"github.com/abelbrown/consonant/internal/ui"
)

// mockLoader implements the loader interface for testing.
type mockLoader struct {
	mu      sync.Mutex
	reqs    []fetch.Request
	partial []card.Card
	full    []card.Card
	err     error
}

func (m *mockLoader) Load(ctx context.Context, req fetch.Request, deliver func(fetch.Update)) error {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if m.partial != nil {
		deliver(fetch.Update{Feed: card.Feed{Cards: m.partial}, Partial: true})
	}
	if m.err != nil {
		return m.err
	}
	deliver(fetch.Update{Feed: card.Feed{Cards: m.full}})
	return nil
}

// mockProgram records sent messages.
type mockProgram struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (p *mockProgram) Send(msg tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *mockProgram) sent() []tea.Msg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tea.Msg(nil), p.msgs...)
}

func testCollection(t *testing.T) *config.Collection {
	t.Helper()
	coll, err := config.ParseCollection([]byte(`{
		"id": "demo",
		"collection": {
			"endpoint": "https://example.com/cards.json",
			"partialLoadWithBackgroundFetch": {"enabled": true, "partialLoadCount": 2}
		}
	}`))
	if err != nil {
		t.Fatalf("parse collection: %v", err)
	}
	return coll
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "consonant.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadCmdSendsPartialThenReturnsFull(t *testing.T) {
	s := openStore(t)
	l := &mockLoader{
		partial: []card.Card{{ID: "1"}},
		full:    []card.Card{{ID: "1"}, {ID: "2"}, {ID: "3"}},
	}
	p := &mockProgram{}
	c := NewCoordinator(testCollection(t), l, s, nil)

	msg := c.LoadCmd(context.Background(), p)()()

	loaded, ok := msg.(ui.CardsLoaded)
	if !ok || loaded.Partial || len(loaded.Feed.Cards) != 3 {
		t.Fatalf("expected full CardsLoaded, got %#v", msg)
	}
	sent := p.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one partial message, got %d", len(sent))
	}
	if partial, ok := sent[0].(ui.CardsLoaded); !ok || !partial.Partial {
		t.Errorf("expected partial CardsLoaded, got %#v", sent[0])
	}
	if l.reqs[0].PartialLoadCount != 2 {
		t.Errorf("expected partial load count 2, got %d", l.reqs[0].PartialLoadCount)
	}

	history, err := s.RecentFetches("demo", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected partial and full records, got %+v", history)
	}
}

func TestLoadCmdFailure(t *testing.T) {
	s := openStore(t)
	l := &mockLoader{err: errors.New("all endpoints failed")}
	c := NewCoordinator(testCollection(t), l, s, nil)

	msg := c.LoadCmd(context.Background(), nil)()()
	if failed, ok := msg.(ui.LoadFailed); !ok || failed.Err == nil {
		t.Fatalf("expected LoadFailed, got %#v", msg)
	}

	history, _ := s.RecentFetches("demo", 10)
	if len(history) != 1 || history[0].Err == "" {
		t.Errorf("expected one failed record, got %+v", history)
	}
}

func TestToggleBookmarkCmd(t *testing.T) {
	s := openStore(t)
	c := NewCoordinator(testCollection(t), &mockLoader{}, s, nil)
	toggle := c.ToggleBookmarkCmd()

	msg := toggle("card-1")()
	if got, ok := msg.(ui.BookmarkToggled); !ok || !got.Bookmarked || got.CardID != "card-1" {
		t.Fatalf("expected bookmark added, got %#v", msg)
	}
	msg = toggle("card-1")()
	if got := msg.(ui.BookmarkToggled); got.Bookmarked {
		t.Error("expected second toggle to remove the bookmark")
	}
}

func TestStartRefreshesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := &mockLoader{full: []card.Card{{ID: "1"}}}
	p := &mockProgram{}
	c := NewCoordinator(testCollection(t), l, nil, nil)
	c.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, p)

	deadline := time.Now().Add(2 * time.Second)
	for len(p.sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	c.Wait()

	if len(p.sent()) < 2 {
		t.Fatalf("expected periodic reloads, got %d messages", len(p.sent()))
	}
}
