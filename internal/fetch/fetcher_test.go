package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/abelbrown/consonant/internal/cache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

const cardsJSON = `{"cards":[{"id":"1","contentArea":{"title":"One"}},{"id":"2","contentArea":{"title":"Two"}}],"totalCount":2}`

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Article 1</title>
      <link>http://example.com/article1</link>
      <description>First article</description>
      <category>product/photoshop</category>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>http://example.com/article2</link>
      <description>Second article</description>
      <pubDate>Mon, 01 Jan 2024 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestFetcher(opts ...Option) *Fetcher {
	opts = append([]Option{WithLimiter(rate.NewLimiter(rate.Inf, 1))}, opts...)
	return NewFetcher(5*time.Second, opts...)
}

func serve(body string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestFetchJSON(t *testing.T) {
	server := serve(cardsJSON, http.StatusOK)
	defer server.Close()

	feed, err := newTestFetcher().Fetch(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(feed.Cards) != 2 || feed.TotalCount != 2 {
		t.Fatalf("expected 2 cards, got %d (total %d)", len(feed.Cards), feed.TotalCount)
	}
	if feed.Cards[1].ContentArea.Title != "Two" {
		t.Errorf("unexpected title %q", feed.Cards[1].ContentArea.Title)
	}
}

func TestFetchRSS(t *testing.T) {
	server := serve(rssBody, http.StatusOK)
	defer server.Close()

	feed, err := newTestFetcher().Fetch(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(feed.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(feed.Cards))
	}
	c := feed.Cards[0]
	if c.ContentArea.Title != "Article 1" || c.CTALink != "http://example.com/article1" {
		t.Errorf("unexpected card: %+v", c)
	}
	if c.CardDate != "2024-01-01T12:00:00Z" {
		t.Errorf("unexpected card date %q", c.CardDate)
	}
	if !c.HasTagID("product/photoshop") {
		t.Errorf("expected category tag, got %v", c.Tags)
	}
}

func TestFetchIDsAreDeterministic(t *testing.T) {
	server := serve(rssBody, http.StatusOK)
	defer server.Close()

	f := newTestFetcher()
	a, _ := f.Fetch(context.Background(), server.URL, "")
	b, _ := f.Fetch(context.Background(), server.URL, "")
	if a.Cards[0].ID == "" || a.Cards[0].ID != b.Cards[0].ID {
		t.Error("IDs should be deterministic for same URL")
	}
}

func TestFetchFallback(t *testing.T) {
	primary := serve("boom", http.StatusInternalServerError)
	defer primary.Close()
	fallback := serve(cardsJSON, http.StatusOK)
	defer fallback.Close()

	feed, err := newTestFetcher().Fetch(context.Background(), primary.URL, fallback.URL)
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if len(feed.Cards) != 2 {
		t.Errorf("expected fallback cards, got %d", len(feed.Cards))
	}
}

func TestFetchAllEndpointsFailed(t *testing.T) {
	primary := serve("", http.StatusNotFound)
	defer primary.Close()
	fallback := serve("not valid xml", http.StatusOK)
	defer fallback.Close()

	_, err := newTestFetcher().Fetch(context.Background(), primary.URL, fallback.URL)
	if !errors.Is(err, ErrAllEndpointsFailed) {
		t.Fatalf("expected ErrAllEndpointsFailed, got %v", err)
	}
}

func TestFetchNoEndpoint(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "", "")
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestFetchUsesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(cardsJSON))
	}))
	defer server.Close()

	f := newTestFetcher(WithCache(cache.NewMemory(), time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), server.URL, ""); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", hits.Load())
	}
}

func TestFetchCancelled(t *testing.T) {
	server := serve(cardsJSON, http.StatusOK)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestFetcher().Fetch(ctx, server.URL, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithPartialLoad(t *testing.T) {
	got, err := WithPartialLoad("https://example.com/feed?collection=abc", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/feed?collection=abc&partialLoadCount=4" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestLoadPartialThenFull(t *testing.T) {
	partialDelivered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(PartialLoadParam) != "" {
			w.Write([]byte(`{"cards":[{"id":"1"}],"totalCount":2}`))
			return
		}
		<-partialDelivered
		w.Write([]byte(cardsJSON))
	}))
	defer server.Close()

	var mu sync.Mutex
	var updates []Update
	err := newTestFetcher().Load(context.Background(), Request{Endpoint: server.URL, PartialLoadCount: 1}, func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
		if u.Partial {
			close(partialDelivered)
		}
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected partial and full updates, got %d", len(updates))
	}
	if !updates[0].Partial || len(updates[0].Feed.Cards) != 1 {
		t.Errorf("expected partial first, got %+v", updates[0])
	}
	if updates[1].Partial || len(updates[1].Feed.Cards) != 2 {
		t.Errorf("expected full second, got %+v", updates[1])
	}
}

func TestLoadDropsLatePartial(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(PartialLoadParam) != "" {
			<-release
			w.Write([]byte(`{"cards":[{"id":"1"}]}`))
			return
		}
		w.Write([]byte(cardsJSON))
	}))
	defer server.Close()

	var updates []Update
	var mu sync.Mutex
	err := newTestFetcher().Load(context.Background(), Request{Endpoint: server.URL, PartialLoadCount: 1}, func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
		if !u.Partial {
			close(release)
		}
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(updates) != 1 || updates[0].Partial {
		t.Errorf("expected only the full update, got %+v", updates)
	}
}

func TestLoadWithoutPartial(t *testing.T) {
	server := serve(cardsJSON, http.StatusOK)
	defer server.Close()

	var got []Update
	err := newTestFetcher().Load(context.Background(), Request{Endpoint: server.URL}, func(u Update) {
		got = append(got, u)
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].Partial {
		t.Errorf("expected single full update, got %+v", got)
	}
}

func TestLoadFailure(t *testing.T) {
	server := serve("", http.StatusBadGateway)
	defer server.Close()

	called := false
	err := newTestFetcher().Load(context.Background(), Request{Endpoint: server.URL, PartialLoadCount: 2}, func(Update) {
		called = true
	})
	if !errors.Is(err, ErrAllEndpointsFailed) {
		t.Errorf("expected ErrAllEndpointsFailed, got %v", err)
	}
	if called {
		t.Error("nothing should be delivered when every request fails")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 2, "hi"},
		{"hi", 1, "h"},
		{"", 5, ""},
	}

	for _, tc := range tests {
		result := truncate(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}
