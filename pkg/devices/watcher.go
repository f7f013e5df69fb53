package devices

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"
)

const defaultDebounce = 200 * time.Millisecond

// ReloadHandler is called after each reload attempt.
type ReloadHandler func(path string, err error)

// Watcher reloads catalog overrides whenever the override file changes.
type Watcher struct {
	catalog  *Catalog
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	handlers map[string]ReloadHandler
}

// NewWatcher creates a watcher for path. It does nothing until Run.
func NewWatcher(catalog *Catalog, path string) *Watcher {
	return &Watcher{
		catalog:  catalog,
		path:     path,
		debounce: defaultDebounce,
		handlers: make(map[string]ReloadHandler),
	}
}

// Subscribe registers a reload callback and returns its id.
func (w *Watcher) Subscribe(fn ReloadHandler) string {
	if fn == nil {
		return ""
	}
	id := ulid.Make().String()
	w.mu.Lock()
	w.handlers[id] = fn
	w.mu.Unlock()
	return id
}

// Unsubscribe removes a reload callback.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	delete(w.handlers, id)
	w.mu.Unlock()
}

// Run loads the overrides once, then reloads on change until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are handled.
func (w *Watcher) Run(ctx context.Context) error {
	w.reload()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.notify(err)
		}
	}
}

func (w *Watcher) reload() {
	w.notify(w.catalog.LoadOverrides(w.path))
}

func (w *Watcher) notify(err error) {
	w.mu.RLock()
	handlers := make([]ReloadHandler, 0, len(w.handlers))
	for _, fn := range w.handlers {
		handlers = append(handlers, fn)
	}
	w.mu.RUnlock()
	for _, fn := range handlers {
		fn(w.path, err)
	}
}
