package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelbrown/consonant/internal/cache"
	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/mount"
	"github.com/abelbrown/consonant/internal/search"
	"github.com/abelbrown/consonant/internal/store"
	"github.com/abelbrown/consonant/internal/telemetry"
)

// loadConfig reads ~/.consonant/config.json or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openDB opens the bookmark store or fatals.
func openDB(cfg *config.Config) *store.Store {
	path := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	st, err := store.Open(path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return st
}

// newCache picks Redis when an address is configured, process memory
// otherwise. An unreachable Redis falls back to memory.
func newCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemory()
	}
	rc := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		logging.Warn("redis unavailable, caching in memory", "addr", cfg.Cache.RedisAddr, "error", err)
		rc.Close()
		return cache.NewMemory()
	}
	return rc
}

// newFetcher builds the card feed client from cfg.
func newFetcher(ctx context.Context, cfg *config.Config) *fetch.Fetcher {
	return fetch.NewFetcher(cfg.FetchTimeout(),
		fetch.WithCache(newCache(ctx, cfg), cfg.CacheTTL()))
}

// newBeacon returns nil when telemetry is disabled; a nil beacon discards
// every event.
func newBeacon(cfg *config.Config) *telemetry.Beacon {
	if !cfg.Telemetry.Enabled {
		return nil
	}
	return telemetry.New(telemetry.Options{
		Endpoint:   cfg.Telemetry.Endpoint,
		ClientID:   cfg.Telemetry.ClientID,
		SampleRate: cfg.Telemetry.SampleRate,
	})
}

// loadCollections reads every collection named by paths. HTML pages
// contribute all of their mount elements.
func loadCollections(paths []string) ([]*config.Collection, error) {
	var out []*config.Collection
	for _, p := range paths {
		if !isPage(p) {
			c, err := config.LoadCollection(p)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			continue
		}

		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		page, err := mount.ParsePage(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		colls, err := page.Collections()
		if err != nil {
			logging.Warn("skipped broken collections", "page", p, "error", err)
		}
		out = append(out, colls...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no collections found in %s", strings.Join(paths, ", "))
	}
	return out, nil
}

// loadCollection returns the single collection named by path. For a page
// holding several, id selects one.
func loadCollection(path, id string) *config.Collection {
	colls, err := loadCollections([]string{path})
	if err != nil {
		log.Fatalf("failed to load collection: %v", err)
	}
	if id == "" {
		return colls[0]
	}
	for _, c := range colls {
		if c.Key() == id {
			return c
		}
	}
	log.Fatalf("collection %q not found in %s", id, path)
	return nil
}

func isPage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// requireArg returns the first positional argument or exits with usage.
func requireArg(args []string, what string) string {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "error: %s is required\n", what)
		os.Exit(2)
	}
	return args[0]
}

// stripHighlights removes search highlight markup for plain output.
func stripHighlights(s string) string {
	s = strings.ReplaceAll(s, search.HighlightOpen, "")
	return card.Sanitize(strings.ReplaceAll(s, search.HighlightClose, ""))
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
