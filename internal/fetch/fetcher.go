// Package fetch retrieves card feeds for a collection.
//
// A feed is fetched from the collection endpoint, falling back to the
// fallback endpoint when the primary request fails or returns non-OK.
// Bodies may be the native {cards, totalCount} JSON or an RSS/Atom feed,
// which is converted to cards.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/consonant/internal/cache"
	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/logging"
)

var (
	// ErrNoEndpoint is returned when neither endpoint is configured.
	ErrNoEndpoint = errors.New("no endpoint configured")
	// ErrAllEndpointsFailed wraps the primary and fallback failures.
	ErrAllEndpointsFailed = errors.New("all endpoints failed")
)

// maxBodyBytes caps a feed response.
const maxBodyBytes = 32 << 20

// Fetcher retrieves card feeds.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache stores successful response bodies in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLimiter replaces the default request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a Fetcher with the given HTTP client timeout.
func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		cache:   cache.NewNoop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the feed at endpoint, trying fallback when the primary
// request fails. Either endpoint may be empty, but not both.
func (f *Fetcher) Fetch(ctx context.Context, endpoint, fallback string) (card.Feed, error) {
	if endpoint == "" && fallback == "" {
		return card.Feed{}, ErrNoEndpoint
	}

	var errs []error
	for _, u := range []string{endpoint, fallback} {
		if u == "" {
			continue
		}
		feed, err := f.fetchOne(ctx, u)
		if err == nil {
			return feed, nil
		}
		if ctx.Err() != nil {
			return card.Feed{}, ctx.Err()
		}
		logging.Warn("fetch: endpoint failed", "url", u, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", u, err))
	}
	return card.Feed{}, fmt.Errorf("%w: %w", ErrAllEndpointsFailed, errors.Join(errs...))
}

func (f *Fetcher) fetchOne(ctx context.Context, u string) (card.Feed, error) {
	if body, ok, err := f.cache.Get(ctx, u); err != nil {
		logging.Warn("fetch: cache read failed", "url", u, "error", err)
	} else if ok {
		if feed, err := Decode(body); err == nil {
			logging.Debug("fetch: cache hit", "url", u)
			return feed, nil
		}
	}

	body, err := f.get(ctx, u)
	if err != nil {
		return card.Feed{}, err
	}
	feed, err := Decode(body)
	if err != nil {
		return card.Feed{}, err
	}

	if err := f.cache.Set(ctx, u, body, f.cacheTTL); err != nil {
		logging.Warn("fetch: cache write failed", "url", u, "error", err)
	}
	return feed, nil
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "consonant/1.0")
	req.Header.Set("Accept", "application/json, application/rss+xml, application/atom+xml;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return body, nil
}
