// Package api serves card collections over HTTP. The collection view state
// travels as the query string, so every response can be deep-linked.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/eventtiming"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/store"
	"github.com/abelbrown/consonant/internal/telemetry"
)

// CardSource loads a collection feed. *fetch.Fetcher satisfies it.
type CardSource interface {
	Load(ctx context.Context, req fetch.Request, deliver func(fetch.Update)) error
}

// BookmarkStore persists bookmarks and fetch history. *store.Store
// satisfies it.
type BookmarkStore interface {
	Bookmarks(collection string) ([]string, error)
	AddBookmark(collection, cardID string) error
	RemoveBookmark(collection, cardID string) error
	ToggleBookmark(collection, cardID string) (bool, error)
	RecordFetch(r store.FetchRecord) error
	RecentFetches(collection string, limit int) ([]store.FetchRecord, error)
}

// Server is the collection HTTP service.
type Server struct {
	addr    string
	source  CardSource
	store   BookmarkStore
	clock   *eventtiming.Clock
	beacon  *telemetry.Beacon
	timeout time.Duration

	mu          sync.RWMutex
	collections map[string]*config.Collection

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used when a request carries no servertime.
func WithClock(c *eventtiming.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithBeacon reports fetch failures to the telemetry beacon.
func WithBeacon(b *telemetry.Beacon) Option {
	return func(s *Server) { s.beacon = b }
}

// WithFetchTimeout bounds each upstream load.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer builds the router. src and st are required.
func NewServer(addr string, src CardSource, st BookmarkStore, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		source:      src,
		store:       st,
		clock:       eventtiming.NewClock(),
		timeout:     30 * time.Second,
		collections: make(map[string]*config.Collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Register makes a collection available under its key.
func (s *Server) Register(c *config.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[c.Key()] = c
}

func (s *Server) collection(id string) (*config.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	return c, ok
}

func (s *Server) collectionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.collections))
	for id := range s.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("api: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Info("api: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.handleCollectionList)

		r.Route("/{collectionID}", func(r chi.Router) {
			r.Get("/cards", s.handleCards)
			r.Get("/history", s.handleHistory)

			r.Get("/bookmarks", s.handleBookmarkList)
			r.Put("/bookmarks/{cardID}", s.handleBookmarkAdd)
			r.Delete("/bookmarks/{cardID}", s.handleBookmarkRemove)
			r.Post("/bookmarks/{cardID}/toggle", s.handleBookmarkToggle)
		})
	})

	return r
}
