package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelbrown/consonant/internal/api"
	"github.com/abelbrown/consonant/internal/eventtiming"
	"github.com/abelbrown/consonant/internal/logging"
)

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (default from config)")
	fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		log.Fatal("serve: at least one collection is required")
	}

	logging.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	colls, err := loadCollections(fs.Args())
	if err != nil {
		log.Fatalf("failed to load collections: %v", err)
	}

	st := openDB(cfg)
	defer st.Close()

	beacon := newBeacon(cfg)
	defer beacon.Close()

	srv := api.NewServer(cfg.Server.Addr, newFetcher(ctx, cfg), st,
		api.WithClock(eventtiming.NewClock()),
		api.WithBeacon(beacon),
		api.WithFetchTimeout(cfg.FetchTimeout()),
	)
	for _, c := range colls {
		srv.Register(c)
		logging.Info("serving collection", "id", c.Key(), "endpoint", c.Collection.Endpoint)
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
