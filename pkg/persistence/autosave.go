package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bpmctl/paramtree/pkg/dispatch"
	"github.com/bpmctl/paramtree/pkg/tree"
)

// Dispatcher is the part of dispatch.Dispatcher an AutoSaver needs.
type Dispatcher interface {
	Connect(cb dispatch.Callback) (tree.ClientID, error)
	Disconnect(id tree.ClientID)
}

// AutoSaver subscribes to every persistent node below root and saves a
// snapshot once changes have been quiet for the configured delay.
type AutoSaver struct {
	root   tree.Node
	disp   Dispatcher
	store  *Store
	delay  time.Duration
	logger *slog.Logger

	id    tree.ClientID
	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewAutoSaver creates an AutoSaver. A zero delay saves one second after
// the last change.
func NewAutoSaver(root tree.Node, disp Dispatcher, store *Store, delay time.Duration, logger *slog.Logger) *AutoSaver {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &AutoSaver{
		root:   root,
		disp:   disp,
		store:  store,
		delay:  delay,
		logger: logger.With("component", "autosave", "file", store.Path()),
		dirty:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start subscribes to the persistent nodes known now. Nodes added later
// are not tracked.
func (a *AutoSaver) Start(ctx context.Context) error {
	id, err := a.disp.Connect(a.changed)
	if err != nil {
		return err
	}
	a.id = id

	nodes, err := a.root.PersistentNodes()
	if err != nil {
		a.disp.Disconnect(id)
		return err
	}
	for _, n := range nodes {
		if err := n.Subscribe(id); err != nil {
			a.disp.Disconnect(id)
			return fmt.Errorf("subscribe %s: %w", n, err)
		}
	}
	a.logger.Debug("tracking persistent nodes", "count", len(nodes))

	a.wg.Add(1)
	go a.loop(ctx)
	return nil
}

// Stop writes a final snapshot and unsubscribes.
func (a *AutoSaver) Stop() {
	a.once.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.disp.Disconnect(a.id)
	})
}

// Flush saves a snapshot now.
func (a *AutoSaver) Flush() error {
	doc, err := Snapshot(a.root)
	if err != nil {
		return err
	}
	if err := a.store.Save(doc); err != nil {
		return err
	}
	a.logger.Debug("saved persistent values", "entries", len(doc.Entries))
	return nil
}

// changed runs on the dispatcher worker.
func (a *AutoSaver) changed(n *tree.Notification) error {
	if n.Kind != tree.ValueChanged {
		return nil
	}
	select {
	case a.dirty <- struct{}{}:
	default:
	}
	return nil
}

func (a *AutoSaver) loop(ctx context.Context) {
	defer a.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	pending := false

	flush := func() {
		if !pending {
			return
		}
		pending = false
		if err := a.Flush(); err != nil {
			a.logger.Error("failed to save persistent values", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-a.done:
			pending = true
			flush()
			return
		case <-a.dirty:
			pending = true
			timer.Reset(a.delay)
		case <-timer.C:
			flush()
		}
	}
}
