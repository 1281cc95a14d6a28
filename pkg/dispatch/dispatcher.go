// Package dispatch delivers tree notifications to subscribed clients.
//
// A Dispatcher is created once at startup and handed to tree.New. Every
// connected client gets its own FIFO queue and worker goroutine, so a slow
// or failing client never delays the others and a single client always
// observes its notifications in emission order. Clients that fail are marked
// broken and reaped by a periodic sweep; tree nodes drop broken subscribers
// lazily from the dead list Emit returns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpmctl/paramtree/pkg/tree"
)

// Default configuration values.
const (
	DefaultMaxQueue      = 4096
	DefaultSweepInterval = time.Second
)

var (
	// ErrStopped is returned by Connect after Stop.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrNilCallback is returned by Connect for a nil callback.
	ErrNilCallback = errors.New("nil callback")
)

// Callback receives notifications for one client. The notification is
// shared between clients and must not be modified. A returned error marks
// the client broken.
type Callback func(n *tree.Notification) error

// Config configures a Dispatcher.
type Config struct {
	// MaxQueue is the per-client queue limit. A client whose queue is full
	// is marked broken.
	MaxQueue int

	// SweepInterval is how often broken clients are reaped.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxQueue <= 0 {
		c.MaxQueue = DefaultMaxQueue
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Dispatcher is the publish/subscribe hub between the tree and its clients.
// It implements tree.Emitter.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[tree.ClientID]*client
	nextID  atomic.Uint64
	stopped bool

	cancel  context.CancelFunc
	sweepWg sync.WaitGroup
}

var _ tree.Emitter = (*Dispatcher)(nil)

// New creates a dispatcher and starts its sweep loop. A nil logger uses
// slog.Default().
func New(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "dispatch"),
		clients: make(map[tree.ClientID]*client),
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.sweepWg.Add(1)
	go d.sweepLoop(ctx)
	return d
}

// Connect registers a callback and starts its delivery worker.
func (d *Dispatcher) Connect(cb Callback) (tree.ClientID, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return 0, ErrStopped
	}

	c := newClient(tree.ClientID(d.nextID.Add(1)), cb)
	d.clients[c.id] = c
	clientsConnected.Inc()
	go c.run(d)

	d.logger.Debug("client connected", "client", c.id)
	return c.id, nil
}

// Disconnect marks the client broken. Pending notifications are dropped and
// the client is reaped by the next sweep. Unknown IDs are ignored.
func (d *Dispatcher) Disconnect(id tree.ClientID) {
	d.mu.RLock()
	c := d.clients[id]
	d.mu.RUnlock()
	if c != nil {
		d.markBroken(c, dropDisconnect, nil)
	}
}

// Connected reports whether id is a live, non-broken client.
func (d *Dispatcher) Connected(id tree.ClientID) bool {
	d.mu.RLock()
	c := d.clients[id]
	d.mu.RUnlock()
	return c != nil && !c.broken.Load()
}

// ClientCount returns the number of clients not yet reaped.
func (d *Dispatcher) ClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// Register subscribes client id to node.
func (d *Dispatcher) Register(id tree.ClientID, node tree.Node) error {
	if !d.Connected(id) {
		return fmt.Errorf("%w: client %d", tree.ErrDisconnected, id)
	}
	return node.Subscribe(id)
}

// Unregister removes client id from node's subscribers.
func (d *Dispatcher) Unregister(id tree.ClientID, node tree.Node) error {
	return node.Unsubscribe(id)
}

// Emit queues n for every subscriber and returns the IDs that are unknown
// or broken. It never blocks on delivery.
func (d *Dispatcher) Emit(subs []tree.ClientID, n *tree.Notification) []tree.ClientID {
	var dead []tree.ClientID
	now := time.Now()

	d.mu.RLock()
	targets := make([]*client, 0, len(subs))
	for _, id := range subs {
		c := d.clients[id]
		if c == nil {
			notificationsDropped.WithLabelValues(dropUnknown).Inc()
			dead = append(dead, id)
			continue
		}
		targets = append(targets, c)
	}
	d.mu.RUnlock()

	for _, c := range targets {
		switch err := c.enqueue(item{n: n, at: now}, d.cfg.MaxQueue); {
		case err == nil:
			notificationsEmitted.Inc()
		case errors.Is(err, errQueueFull):
			d.markBroken(c, dropOverflow, err)
			notificationsDropped.WithLabelValues(dropOverflow).Inc()
			dead = append(dead, c.id)
		default:
			notificationsDropped.WithLabelValues(dropBroken).Inc()
			dead = append(dead, c.id)
		}
	}
	return dead
}

// Stop drains every queue, joins every worker and stops the sweep loop.
// No callback runs after Stop returns.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	clients := make([]*client, 0, len(d.clients))
	for id, c := range d.clients {
		clients = append(clients, c)
		delete(d.clients, id)
	}
	d.mu.Unlock()

	d.cancel()
	d.sweepWg.Wait()

	for _, c := range clients {
		c.close()
	}
	for _, c := range clients {
		<-c.done
		clientsConnected.Dec()
	}
	d.logger.Debug("dispatcher stopped", "clients", len(clients))
}

// markBroken flags c, drops its queue and wakes its worker so it exits.
func (d *Dispatcher) markBroken(c *client, reason string, cause error) {
	if c.broken.Swap(true) {
		return
	}
	dropped := c.drop()
	if dropped > 0 {
		notificationsDropped.WithLabelValues(reason).Add(float64(dropped))
	}
	if cause != nil {
		d.logger.Warn("client broken", "client", c.id, "reason", reason, "dropped", dropped, "error", cause)
	} else {
		d.logger.Debug("client broken", "client", c.id, "reason", reason, "dropped", dropped)
	}
}

func (d *Dispatcher) sweepLoop(ctx context.Context) {
	defer d.sweepWg.Done()

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

// sweep removes broken clients and waits for their workers to exit.
func (d *Dispatcher) sweep() {
	var reaped []*client
	d.mu.Lock()
	for id, c := range d.clients {
		if c.broken.Load() {
			reaped = append(reaped, c)
			delete(d.clients, id)
		}
	}
	d.mu.Unlock()

	for _, c := range reaped {
		<-c.done
		clientsConnected.Dec()
	}
	if len(reaped) > 0 {
		d.logger.Debug("reaped broken clients", "count", len(reaped))
	}
}
