package tree

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/value"
)

// NodeID identifies a node entity. IDs are unique within the process and
// never reused.
type NodeID uint64

var lastNodeID atomic.Uint64

func nextNodeID() NodeID { return NodeID(lastNodeID.Add(1)) }

// RootName is the name of every tree's root node.
const RootName = "root"

// Tree is an arena of node entities under one root.
type Tree struct {
	mu       sync.RWMutex
	entities map[NodeID]*entity
	root     NodeID

	emitter Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithEmitter sets the notification emitter, usually a dispatcher.
func WithEmitter(e Emitter) TreeOption {
	return func(t *Tree) { t.emitter = e }
}

// WithLogger sets the logger for tree diagnostics.
func WithLogger(l *slog.Logger) TreeOption {
	return func(t *Tree) { t.logger = l }
}

// WithClock overrides the clock used to stamp notifications.
func WithClock(now func() time.Time) TreeOption {
	return func(t *Tree) { t.now = now }
}

// New creates a tree holding only its root directory.
func New(opts ...TreeOption) *Tree {
	t := &Tree{
		entities: make(map[NodeID]*entity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	root := &entity{
		id:       nextNodeID(),
		name:     RootName,
		nodeKind: KindDir,
		store:    dirStore{},
		local:    NewLocalStructure(),
		flags:    FlagReadable,
		state:    Attached,
	}
	t.entities[root.id] = root
	t.root = root.id
	return t
}

// Root returns the handle of the root node.
func (t *Tree) Root() Node { return Node{t: t, id: t.root} }

// Emitter returns the emitter the tree was built with, or nil.
func (t *Tree) Emitter() Emitter { return t.emitter }

// Lookup resolves a slash separated path from the root.
func (t *Tree) Lookup(path string) (Node, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Node{}, err
	}
	return t.Root().NavigatePath(p)
}

// Len returns the number of live entities, the root included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// Contains reports whether id names a live entity.
func (t *Tree) Contains(id NodeID) bool {
	_, err := t.lookup(id)
	return err == nil
}

func (t *Tree) lookup(id NodeID) (*entity, error) {
	t.mu.RLock()
	e, ok := t.entities[id]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrStaleHandle
	}
	return e, nil
}

func (t *Tree) insert(e *entity) {
	t.mu.Lock()
	t.entities[e.id] = e
	t.mu.Unlock()
}

func (t *Tree) remove(id NodeID) {
	t.mu.Lock()
	delete(t.entities, id)
	t.mu.Unlock()
}

// emit hands n to the emitter and prunes the subscribers it reports dead.
// It must be called without any entity lock held.
func (t *Tree) emit(e *entity, subs []ClientID, n *Notification) {
	if t.emitter == nil || len(subs) == 0 {
		return
	}
	dead := t.emitter.Emit(subs, n)
	if len(dead) == 0 {
		return
	}
	e.mu.Lock()
	for _, id := range dead {
		delete(e.subs, id)
	}
	e.mu.Unlock()
	t.logger.Debug("pruned dead subscribers", "node", e.name, "count", len(dead))
}

// notifyParent emits a structural event on parent about child.
func (t *Tree) notifyParent(parent NodeID, kind EventKind, child string) {
	if parent == 0 || t.emitter == nil {
		return
	}
	p, err := t.lookup(parent)
	if err != nil {
		return
	}
	p.mu.Lock()
	if p.state == Destroyed {
		p.mu.Unlock()
		return
	}
	subs := p.subscribers()
	p.mu.Unlock()

	t.emit(p, subs, &Notification{
		Node:    Node{t: t, id: parent},
		Kind:    kind,
		Payload: value.String(child),
		Time:    t.now(),
	})
}

// entity is one node of the arena.
type entity struct {
	// Immutable after creation.
	id          NodeID
	name        string
	nodeKind    NodeKind
	kind        value.Kind
	description string
	constraint  constraint.Expression
	domain      *EnumDomain
	store       storage
	local       *LocalStructure
	proxy       Proxy

	mu     sync.Mutex
	flags  Flags
	parent NodeID
	state  State
	subs   map[ClientID]struct{}
}

func (e *entity) children() ChildSource {
	if e.proxy != nil {
		return e.proxy
	}
	return e.local
}

// subscribers returns a snapshot of the subscriber set. Callers hold e.mu.
func (e *entity) subscribers() []ClientID {
	if len(e.subs) == 0 {
		return nil
	}
	out := make([]ClientID, 0, len(e.subs))
	for id := range e.subs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// snapshot returns flags and state under the lock.
func (e *entity) snapshot() (Flags, State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags, e.state
}

func (e *entity) String() string {
	return fmt.Sprintf("%s#%d", e.name, e.id)
}
