package tree

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bpmctl/paramtree/pkg/value"
)

// ChildSource answers structural queries for the children of a node. rel is
// the path below the anchor node; local structures only serve the empty
// path.
type ChildSource interface {
	// Names returns the visible child names in order.
	Names(rel Path) ([]string, error)

	// Count returns the number of visible children.
	Count(rel Path) (int, error)

	// Has reports whether name is a child, hidden children included.
	Has(rel Path, name string) (bool, error)

	// IsLeaf reports whether the node has no children at all.
	IsLeaf(rel Path) (bool, error)
}

// Proxy is a ChildSource whose nodes live elsewhere, typically in a peer
// process. Every call is forwarded; nothing is cached.
type Proxy interface {
	ChildSource

	Info(rel Path) (Info, error)

	// Get reads count elements at pos. count < 0 reads to the end.
	Get(rel Path, pos, count int) (value.Value, error)
	Set(rel Path, pos int, v value.Value) error
	Execute(rel Path) error
	Resize(rel Path, n int) error

	Subscribe(rel Path, id ClientID) error
	Unsubscribe(rel Path, id ClientID) error

	// Bind is called once when the proxy is mounted. Notifications for rel
	// must be emitted on anchor.At(rel) through e.
	Bind(anchor Node, e Emitter) error
}

// Info describes a node. For nodes below a mount it is the only source of
// metadata; constraints are then only known by their text.
type Info struct {
	Name        string
	NodeKind    NodeKind
	Kind        value.Kind
	Flags       Flags
	Size        int
	Children    int
	Domain      *EnumDomain
	Constraint  string
	Description string
}

type childEntry struct {
	name   string
	id     NodeID
	hidden bool
}

// LocalStructure is the in-memory child table of a node.
type LocalStructure struct {
	mu     sync.RWMutex
	byName map[string]*childEntry
	order  []*childEntry
}

// NewLocalStructure returns an empty child table.
func NewLocalStructure() *LocalStructure {
	return &LocalStructure{byName: make(map[string]*childEntry)}
}

func checkLocal(rel Path) error {
	if !rel.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return nil
}

// Names returns the visible child names in insertion order.
func (s *LocalStructure) Names(rel Path) ([]string, error) {
	if err := checkLocal(rel); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.order))
	for _, c := range s.order {
		if !c.hidden {
			out = append(out, c.name)
		}
	}
	return out, nil
}

// Count returns the number of visible children.
func (s *LocalStructure) Count(rel Path) (int, error) {
	if err := checkLocal(rel); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.order {
		if !c.hidden {
			n++
		}
	}
	return n, nil
}

// Has reports whether name is a child, hidden or not.
func (s *LocalStructure) Has(rel Path, name string) (bool, error) {
	if err := checkLocal(rel); err != nil {
		return false, err
	}
	_, ok := s.lookup(name)
	return ok, nil
}

// IsLeaf reports whether there are no children, hidden ones included.
func (s *LocalStructure) IsLeaf(rel Path) (bool, error) {
	if err := checkLocal(rel); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order) == 0, nil
}

func (s *LocalStructure) lookup(name string) (NodeID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return c.id, true
}

// visibleAt returns the i-th visible child.
func (s *LocalStructure) visibleAt(i int) (NodeID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.order {
		if c.hidden {
			continue
		}
		if i == 0 {
			return c.id, true
		}
		i--
	}
	return 0, false
}

// entries returns a snapshot of all children, hidden ones included.
func (s *LocalStructure) entries() []childEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]childEntry, len(s.order))
	for i, c := range s.order {
		out[i] = *c
	}
	return out
}

func (s *LocalStructure) add(c childEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[c.name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateName, c.name)
	}
	e := c
	s.byName[c.name] = &e
	s.order = append(s.order, &e)
	return nil
}

func (s *LocalStructure) remove(name string, id NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byName[name]
	if !ok || c.id != id {
		return false
	}
	delete(s.byName, name)
	s.order = slices.DeleteFunc(s.order, func(x *childEntry) bool { return x == c })
	return true
}

// drain removes and returns every child.
func (s *LocalStructure) drain() []childEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]childEntry, len(s.order))
	for i, c := range s.order {
		out[i] = *c
	}
	s.byName = make(map[string]*childEntry)
	s.order = nil
	return out
}

// conflicts returns the names of cs already present.
func (s *LocalStructure) conflicts(cs []childEntry) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, c := range cs {
		if _, dup := s.byName[c.name]; dup {
			out = append(out, c.name)
		}
	}
	return out
}

// addAll adds every child that does not collide and returns the ones that
// did, in order.
func (s *LocalStructure) addAll(cs []childEntry) (moved, rejected []childEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		if _, dup := s.byName[c.name]; dup {
			rejected = append(rejected, c)
			continue
		}
		e := c
		s.byName[c.name] = &e
		s.order = append(s.order, &e)
		moved = append(moved, c)
	}
	return moved, rejected
}
