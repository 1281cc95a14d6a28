package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bpmctl/paramtree/pkg/tree"
)

// DefaultDebounce is how long a Watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher re-applies a store's file to a subtree when the file is edited.
// Writes made through the same Store are recognised and ignored.
type Watcher struct {
	store    *Store
	root     tree.Node
	logger   *slog.Logger
	debounce time.Duration

	fw      *fsnotify.Watcher
	reloads chan error
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher creates a watcher. A zero debounce uses DefaultDebounce.
func NewWatcher(store *Store, root tree.Node, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    store,
		root:     root,
		logger:   logger.With("component", "persistence-watcher", "file", store.Path()),
		debounce: debounce,
		reloads:  make(chan error, 8),
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. The directory is watched rather than the file so
// that atomic replacements are seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.store.Path())); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.store.Path(), err)
	}
	w.fw = fw

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		if w.fw != nil {
			err = w.fw.Close()
		}
		w.wg.Wait()
	})
	return err
}

// Reloads reports the result of every reload that applied a document.
// Results are dropped when nobody reads them.
func (w *Watcher) Reloads() <-chan error {
	return w.reloads
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	name := filepath.Clean(w.store.Path())
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	doc, changed, err := w.store.load()
	switch {
	case err != nil:
		w.logger.Warn("failed to load edited file", "error", err)
	case doc == nil || !changed:
		return
	default:
		err = Apply(w.root, doc, w.logger)
		w.logger.Info("reloaded persistent values", "entries", len(doc.Entries), "error", err)
	}
	select {
	case w.reloads <- err:
	default:
	}
}
