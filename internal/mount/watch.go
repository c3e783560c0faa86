package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abelbrown/consonant/internal/debounce"
	"github.com/abelbrown/consonant/internal/logging"
)

// DefaultWatchDelay coalesces the burst of events an editor save produces.
const DefaultWatchDelay = 300 * time.Millisecond

// Watcher re-reads a page file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func NewWatcher(path string, delay time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: debounce.New(delay),
	}, nil
}

// Run blocks until ctx is done, calling onChange with the freshly parsed
// page after each quiet period following a change. Pages that fail to
// parse are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*Page)) error {
	defer w.watcher.Close()
	defer w.debounce.Cancel()

	reload := func() {
		page, err := w.load()
		if err != nil {
			logging.Warn("mount: reload failed", "path", w.path, "error", err)
			return
		}
		onChange(page)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !pageChanged(event.Op) {
				continue
			}
			logging.Debug("mount: page changed", "path", w.path, "op", event.Op.String())
			w.debounce.Call(reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("mount: watcher error", "error", err)
		}
	}
}

// pageChanged reports whether op may have changed the page content.
// Chmod-only events are ignored; a Chmod folded into a Write is not.
func pageChanged(op fsnotify.Op) bool {
	if op == fsnotify.Chmod {
		return false
	}
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) load() (*Page, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePage(f)
}
