package content

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nbed-digital/continuum/internal/index"
)

// Watcher rebuilds the artifacts when content files change and swaps the
// result into the target store. Bursts of filesystem events (editors write
// several times per save) are coalesced with a quiet-period timer.
type Watcher struct {
	engine *Engine
	store  *index.MemoryStore
	quiet  time.Duration
}

func NewWatcher(engine *Engine, store *index.MemoryStore) *Watcher {
	return &Watcher{engine: engine, store: store, quiet: 500 * time.Millisecond}
}

// Run blocks until ctx is cancelled. Rebuild failures are logged and the
// previous snapshot stays live.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	for _, sub := range []string{"indicators", "components", "resources"} {
		dir := filepath.Join(w.engine.Dir, sub)
		if err := fsw.Add(dir); err != nil {
			log.Printf("watch %s: %v", dir, err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.quiet)
				fire = timer.C
			} else {
				timer.Reset(w.quiet)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("content watcher: %v", err)
		case <-fire:
			timer = nil
			fire = nil
			w.rebuild()
		}
	}
}

func (w *Watcher) rebuild() {
	entries, counts, err := w.engine.Build()
	if err != nil {
		log.Printf("content rebuild failed, keeping previous index: %v", err)
		return
	}
	w.store.Swap(entries, counts)
	log.Printf("content rebuilt: %d entries, continuum version %s", len(entries), counts.Version)
}
