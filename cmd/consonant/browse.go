package main

import (
	"context"
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/consonant/internal/coord"
	"github.com/abelbrown/consonant/internal/eventtiming"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/ui"
)

func runBrowse() {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	id := fs.String("id", "", "Collection id when the page holds several")
	serverTime := fs.Int64("servertime", 0, "Pin the event clock to this epoch millisecond value")
	fs.Parse(os.Args[1:])
	path := requireArg(fs.Args(), "collection")

	if err := logging.Init(""); err != nil {
		log.Printf("Warning: logging disabled: %v", err)
	}
	defer logging.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := loadConfig()
	coll := loadCollection(path, *id)

	st := openDB(cfg)
	defer st.Close()

	beacon := newBeacon(cfg)
	defer beacon.Close()

	clock := eventtiming.NewClock()
	if *serverTime > 0 {
		clock.OverrideMillis(*serverTime)
	}

	coordinator := coord.NewCoordinator(coll, newFetcher(ctx, cfg), st, beacon)

	bookmarks, err := st.Bookmarks(coll.Key())
	if err != nil {
		logging.Warn("bookmarks unavailable", "collection", coll.Key(), "error", err)
	}

	// program is assigned before Run, so the load closure always sees it.
	var program *tea.Program
	app := ui.NewApp(coll, ui.Deps{
		Load: func() tea.Cmd {
			return coordinator.LoadCmd(ctx, program)()
		},
		ToggleBookmark: coordinator.ToggleBookmarkCmd(),
		Now:            clock.Now,
		SearchDelay:    cfg.SearchDebounce(),
	}).WithBookmarks(bookmarks)

	program = tea.NewProgram(app, tea.WithAltScreen())
	coordinator.Start(ctx, program)

	// Run UI (blocks until quit)
	if _, err := program.Run(); err != nil {
		log.Printf("Error running program: %v", err)
	}

	// Graceful shutdown
	cancel()
	coordinator.Wait()
}
