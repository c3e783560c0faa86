package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/logging"
)

// PartialLoadParam is the query parameter asking the feed for its first
// few cards only.
const PartialLoadParam = "partialLoadCount"

// Request describes one collection load.
type Request struct {
	Endpoint         string
	FallbackEndpoint string
	// PartialLoadCount > 0 fetches a small first page alongside the full feed.
	PartialLoadCount int
}

// Update is delivered for each load result. A partial update is never
// delivered after the full one.
type Update struct {
	Feed    card.Feed
	Partial bool
}

// WithPartialLoad returns endpoint with the partialLoadCount parameter set.
func WithPartialLoad(endpoint string, count int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set(PartialLoadParam, strconv.Itoa(count))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Load fetches the collection and calls deliver for each result. With
// partial loading enabled the partial and full requests run concurrently;
// the full result always supersedes the partial one, and a partial result
// arriving late is dropped. Load returns the full request's error; a failed
// partial request is only logged.
func (f *Fetcher) Load(ctx context.Context, req Request, deliver func(Update)) error {
	if req.PartialLoadCount <= 0 {
		feed, err := f.Fetch(ctx, req.Endpoint, req.FallbackEndpoint)
		if err != nil {
			return err
		}
		deliver(Update{Feed: feed})
		return nil
	}

	var (
		mu       sync.Mutex
		fullDone bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		primary, fallback, err := partialEndpoints(req)
		if err != nil {
			logging.Warn("fetch: partial load skipped", "error", err)
			return nil
		}
		feed, err := f.Fetch(gctx, primary, fallback)
		if err != nil {
			logging.Debug("fetch: partial load failed", "error", err)
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if !fullDone {
			deliver(Update{Feed: feed, Partial: true})
		}
		return nil
	})

	g.Go(func() error {
		feed, err := f.Fetch(gctx, req.Endpoint, req.FallbackEndpoint)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		fullDone = true
		deliver(Update{Feed: feed})
		return nil
	})

	return g.Wait()
}

func partialEndpoints(req Request) (string, string, error) {
	var primary, fallback string
	var err error
	if req.Endpoint != "" {
		if primary, err = WithPartialLoad(req.Endpoint, req.PartialLoadCount); err != nil {
			return "", "", err
		}
	}
	if req.FallbackEndpoint != "" {
		if fallback, err = WithPartialLoad(req.FallbackEndpoint, req.PartialLoadCount); err != nil {
			return "", "", err
		}
	}
	return primary, fallback, nil
}
