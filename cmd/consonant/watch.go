package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/mount"
)

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	delay := fs.Duration("delay", mount.DefaultWatchDelay, "Quiet period before re-mounting")
	author := fs.Bool("author", false, "Only re-mount when a new experience fragment appears")
	fs.Parse(os.Args[1:])
	path := requireArg(fs.Args(), "page")

	logging.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := mount.NewRegistry()
	err := registry.Register(mount.CollectionComponent(func(t mount.Target, c *config.Collection) error {
		log.Printf("mounted %s (endpoint %s)", c.Key(), c.Collection.Endpoint)
		return nil
	}))
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	controller := mount.NewController(registry)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open page: %v", err)
	}
	page, err := mount.ParsePage(f)
	f.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}
	remount(controller, page, false)

	w, err := mount.NewWatcher(path, *delay)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("watching %s", path)
	if err := w.Run(ctx, func(p *mount.Page) { remount(controller, p, *author) }); err != nil {
		log.Fatalf("watch: %v", err)
	}
}

// remount renders the page's collections. In author mode only fragments
// that were not the last mounted target trigger a render.
func remount(c *mount.Controller, p *mount.Page, author bool) {
	start := time.Now()
	root := p.Doc.Selection

	if !author {
		n, err := c.Init(root)
		if err != nil {
			log.Printf("mount errors: %v", err)
		}
		logging.Info("mount: init", "mounted", n, "took", time.Since(start))
		return
	}

	// the most recently authored fragment is the last one in document order
	el := root.Find("[class*=experiencefragment]").Last()
	rendered, err := c.AuthorWatch(el, root)
	if err != nil {
		log.Printf("mount errors: %v", err)
	}
	if rendered {
		logging.Info("mount: author render", "took", time.Since(start))
	}
}
