package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpmctl/paramtree/pkg/tree"
)

var (
	errQueueFull = errors.New("queue full")
	errClosed    = errors.New("client closed")
)

type item struct {
	n  *tree.Notification
	at time.Time
}

// client is one delivery context: a FIFO plus the worker draining it.
type client struct {
	id tree.ClientID
	cb Callback

	mu      sync.Mutex
	queue   []item
	closing bool

	broken atomic.Bool
	wake   chan struct{}
	done   chan struct{}
}

func newClient(id tree.ClientID, cb Callback) *client {
	return &client{
		id:   id,
		cb:   cb,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *client) enqueue(it item, limit int) error {
	c.mu.Lock()
	if c.closing || c.broken.Load() {
		c.mu.Unlock()
		return errClosed
	}
	if len(c.queue) >= limit {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d pending", errQueueFull, limit)
	}
	c.queue = append(c.queue, it)
	c.mu.Unlock()
	c.signal()
	return nil
}

// drop discards pending items and stops the worker after its current
// callback.
func (c *client) drop() int {
	c.mu.Lock()
	n := len(c.queue)
	c.queue = nil
	c.closing = true
	c.mu.Unlock()
	c.signal()
	return n
}

// close lets the worker drain what is queued and then exit.
func (c *client) close() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.signal()
}

func (c *client) next() (item, bool) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			it := c.queue[0]
			c.queue[0] = item{}
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return it, true
		}
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return item{}, false
		}
		<-c.wake
	}
}

func (c *client) run(d *Dispatcher) {
	defer close(c.done)
	for {
		it, ok := c.next()
		if !ok {
			return
		}
		if c.broken.Load() {
			notificationsDropped.WithLabelValues(dropBroken).Inc()
			continue
		}
		reason, err := c.deliver(it.n)
		if err != nil {
			notificationsDropped.WithLabelValues(reason).Inc()
			d.markBroken(c, reason, err)
			continue
		}
		notificationsDelivered.Inc()
		deliveryLatency.Observe(time.Since(it.at).Seconds())
	}
}

func (c *client) deliver(n *tree.Notification) (reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reason, err = dropPanic, fmt.Errorf("callback panic: %v", r)
		}
	}()
	if err := c.cb(n); err != nil {
		return dropError, err
	}
	return "", nil
}
