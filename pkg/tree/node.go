package tree

import (
	"fmt"
	"slices"

	"github.com/bpmctl/paramtree/pkg/constraint"
	"github.com/bpmctl/paramtree/pkg/value"
)

// Node is a handle to a node entity, optionally extended by a path below a
// mount point. Handles are small values; copy them freely. Two handles are
// equal if they name the same entity and relative path.
//
// A Node never keeps its entity alive. Once the entity is destroyed every
// operation fails with ErrStaleHandle.
type Node struct {
	t   *Tree
	id  NodeID
	rel string
}

var _ constraint.Bound = Node{}

// ID returns the entity id. Handles below a mount share the mount's id.
func (n Node) ID() NodeID { return n.id }

// Tree returns the tree the handle belongs to.
func (n Node) Tree() *Tree { return n.t }

// IsZero reports whether n is the zero handle.
func (n Node) IsZero() bool { return n.t == nil }

// Equal reports whether n and o address the same node.
func (n Node) Equal(o Node) bool { return n == o }

// RelPath returns the path below the mount point, empty for local nodes.
func (n Node) RelPath() Path { return pathFromKey(n.rel) }

// At returns the handle for p below n without resolving it. It is used by
// proxies to address their nodes.
func (n Node) At(p Path) Node {
	if p.IsEmpty() {
		return n
	}
	return Node{t: n.t, id: n.id, rel: pathFromKey(n.rel).Join(p...).key()}
}

func (n Node) entity() (*entity, error) {
	if n.t == nil {
		return nil, ErrStaleHandle
	}
	return n.t.lookup(n.id)
}

// live resolves the entity and fails if it was destroyed.
func (n Node) live() (*entity, error) {
	e, err := n.entity()
	if err != nil {
		return nil, err
	}
	if _, st := e.snapshot(); st == Destroyed {
		return nil, ErrStaleHandle
	}
	return e, nil
}

// proxied returns the proxy serving n if n is a mount or lies below one.
func (n Node) proxied() (Proxy, Path, bool, error) {
	e, err := n.live()
	if err != nil {
		return nil, nil, false, err
	}
	if e.proxy == nil {
		if n.rel != "" {
			return nil, nil, false, fmt.Errorf("%w: %s", ErrNotFound, n.rel)
		}
		return nil, nil, false, nil
	}
	return e.proxy, n.RelPath(), true, nil
}

// below returns the proxy for a handle with a relative path.
func (n Node) below() (Proxy, Path, error) {
	p, rel, ok, err := n.proxied()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, n.rel)
	}
	return p, rel, nil
}

// State returns the lifecycle state; Destroyed for stale handles.
func (n Node) State() State {
	e, err := n.entity()
	if err != nil {
		return Destroyed
	}
	_, st := e.snapshot()
	return st
}

// Name returns the node name.
func (n Node) Name() (string, error) {
	if n.rel != "" {
		rel := n.RelPath()
		return rel[len(rel)-1], nil
	}
	e, err := n.live()
	if err != nil {
		return "", err
	}
	return e.name, nil
}

// Path returns the path from the root. Detached subtrees report the path
// from their detached top.
func (n Node) Path() (Path, error) {
	e, err := n.live()
	if err != nil {
		return nil, err
	}
	var names []string
	for cur := e; ; {
		cur.mu.Lock()
		parent := cur.parent
		cur.mu.Unlock()
		if parent == 0 {
			if cur.id != n.t.root {
				names = append(names, cur.name)
			}
			break
		}
		names = append(names, cur.name)
		if cur, err = n.t.lookup(parent); err != nil {
			return nil, err
		}
	}
	slices.Reverse(names)
	return Path(names).Join(n.RelPath()...), nil
}

// String returns the absolute path, or "<stale>".
func (n Node) String() string {
	p, err := n.Path()
	if err != nil {
		return "<stale>"
	}
	return p.String()
}

// Resolve reads the current value so a handle can serve as a constraint
// bound.
func (n Node) Resolve() (value.Value, error) { return n.Get() }

// Navigate returns the child called name. Hidden children are found too.
func (n Node) Navigate(name string) (Node, error) {
	if err := checkName(name); err != nil {
		return Node{}, err
	}
	p, rel, ok, err := n.proxied()
	if err != nil {
		return Node{}, err
	}
	if ok {
		has, err := p.Has(rel, name)
		if err != nil {
			return Node{}, err
		}
		if !has {
			return Node{}, fmt.Errorf("%w: %s/%s", ErrNotFound, n, name)
		}
		return n.At(Path{name}), nil
	}

	e, _ := n.entity()
	id, found := e.local.lookup(name)
	if !found {
		return Node{}, fmt.Errorf("%w: %s/%s", ErrNotFound, n, name)
	}
	return Node{t: n.t, id: id}, nil
}

// NavigateIndex returns the i-th visible child.
func (n Node) NavigateIndex(i int) (Node, error) {
	p, rel, ok, err := n.proxied()
	if err != nil {
		return Node{}, err
	}
	if ok {
		names, err := p.Names(rel)
		if err != nil {
			return Node{}, err
		}
		if i < 0 || i >= len(names) {
			return Node{}, fmt.Errorf("%w: child %d of %d", ErrNotFound, i, len(names))
		}
		return n.At(Path{names[i]}), nil
	}

	e, _ := n.entity()
	id, found := e.local.visibleAt(i)
	if !found {
		return Node{}, fmt.Errorf("%w: child %d of %s", ErrNotFound, i, n)
	}
	return Node{t: n.t, id: id}, nil
}

// NavigatePath follows p from n.
func (n Node) NavigatePath(p Path) (Node, error) {
	cur := n
	for _, name := range p {
		next, err := cur.Navigate(name)
		if err != nil {
			return Node{}, err
		}
		cur = next
	}
	if p.IsEmpty() {
		if _, err := n.live(); err != nil {
			return Node{}, err
		}
	}
	return cur, nil
}

// Parent returns the parent handle. It fails for the root and for
// detached nodes.
func (n Node) Parent() (Node, error) {
	if n.rel != "" {
		rel := n.RelPath()
		return Node{t: n.t, id: n.id, rel: rel[:len(rel)-1].key()}, nil
	}
	e, err := n.live()
	if err != nil {
		return Node{}, err
	}
	e.mu.Lock()
	parent := e.parent
	e.mu.Unlock()
	if parent == 0 {
		if e.id == n.t.root {
			return Node{}, ErrRootNode
		}
		return Node{}, ErrNotAttached
	}
	return Node{t: n.t, id: parent}, nil
}

// Children returns the visible children in order.
func (n Node) Children() ([]Node, error) {
	p, rel, ok, err := n.proxied()
	if err != nil {
		return nil, err
	}
	if ok {
		names, err := p.Names(rel)
		if err != nil {
			return nil, err
		}
		out := make([]Node, len(names))
		for i, name := range names {
			out[i] = n.At(Path{name})
		}
		return out, nil
	}

	e, _ := n.entity()
	var out []Node
	for _, c := range e.local.entries() {
		if !c.hidden {
			out = append(out, Node{t: n.t, id: c.id})
		}
	}
	return out, nil
}

// allChildren returns all children, hidden ones included. Only local nodes
// can list hidden children.
func (n Node) allChildren() ([]Node, error) {
	if _, _, ok, err := n.proxied(); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return n.Children()
	}
	e, _ := n.entity()
	entries := e.local.entries()
	out := make([]Node, len(entries))
	for i, c := range entries {
		out[i] = Node{t: n.t, id: c.id}
	}
	return out, nil
}

// ChildCount returns the number of visible children.
func (n Node) ChildCount() (int, error) {
	p, rel, ok, err := n.proxied()
	if err != nil {
		return 0, err
	}
	if ok {
		return p.Count(rel)
	}
	e, _ := n.entity()
	return e.local.Count(nil)
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() (bool, error) {
	p, rel, ok, err := n.proxied()
	if err != nil {
		return false, err
	}
	if ok {
		return p.IsLeaf(rel)
	}
	e, _ := n.entity()
	return e.local.IsLeaf(nil)
}

// Info returns the node metadata.
func (n Node) Info() (Info, error) {
	if n.rel != "" {
		p, rel, err := n.below()
		if err != nil {
			return Info{}, err
		}
		return p.Info(rel)
	}
	e, err := n.live()
	if err != nil {
		return Info{}, err
	}
	flags, _ := e.snapshot()
	info := Info{
		Name:        e.name,
		NodeKind:    e.nodeKind,
		Kind:        e.kind,
		Flags:       flags,
		Domain:      e.domain,
		Description: e.description,
	}
	if e.constraint != nil {
		info.Constraint = e.constraint.String()
	}
	if info.Size, err = n.Size(); err != nil {
		return Info{}, err
	}
	if info.Children, err = n.ChildCount(); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Flags returns the capability flags.
func (n Node) Flags() (Flags, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.Flags, err
	}
	e, err := n.live()
	if err != nil {
		return 0, err
	}
	f, _ := e.snapshot()
	return f, nil
}

func (n Node) hasFlag(check func(Flags) bool) (bool, error) {
	f, err := n.Flags()
	if err != nil {
		return false, err
	}
	return check(f), nil
}

// IsReadable reports whether the value can be read through handles.
func (n Node) IsReadable() (bool, error) { return n.hasFlag(Flags.Readable) }

// IsWritable reports whether the value can be written through handles.
func (n Node) IsWritable() (bool, error) { return n.hasFlag(Flags.Writable) }

// IsArray reports whether the node holds an array.
func (n Node) IsArray() (bool, error) { return n.hasFlag(Flags.Array) }

// IsConstant reports whether every write is rejected.
func (n Node) IsConstant() (bool, error) { return n.hasFlag(Flags.Constant) }

// IsSignal reports whether the node is an event source.
func (n Node) IsSignal() (bool, error) { return n.hasFlag(Flags.Signal) }

// IsHidden reports whether the node is excluded from enumeration.
func (n Node) IsHidden() (bool, error) { return n.hasFlag(Flags.Hidden) }

// IsPersistent reports whether the node is part of saved configuration.
func (n Node) IsPersistent() (bool, error) { return n.hasFlag(Flags.Persistent) }

// IsExecutable reports whether the node is a command.
func (n Node) IsExecutable() (bool, error) { return n.hasFlag(Flags.Executable) }

// Kind returns the declared value kind. Directories report KindInvalid.
func (n Node) Kind() (value.Kind, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.Kind, err
	}
	e, err := n.live()
	if err != nil {
		return value.KindInvalid, err
	}
	return e.kind, nil
}

// NodeKind returns the storage strategy.
func (n Node) NodeKind() (NodeKind, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.NodeKind, err
	}
	e, err := n.live()
	if err != nil {
		return 0, err
	}
	return e.nodeKind, nil
}

// Size returns the element count: 1 for scalars, 0 for directories.
func (n Node) Size() (int, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.Size, err
	}
	e, err := n.live()
	if err != nil {
		return 0, err
	}
	if e.store.external() {
		if s := e.store.size(); s >= 0 {
			return s, nil
		}
		v, err := e.store.load(0, -1)
		if err != nil {
			return 0, err
		}
		return v.Size(), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.size(), nil
}

// Domain returns the enum domain, or nil.
func (n Node) Domain() (*EnumDomain, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.Domain, err
	}
	e, err := n.live()
	if err != nil {
		return nil, err
	}
	return e.domain, nil
}

// Constraint returns the attached expression, or nil. Nodes below a mount
// only expose the textual form through Info.
func (n Node) Constraint() (constraint.Expression, error) {
	if n.rel != "" {
		return nil, fmt.Errorf("%w: constraint of %s", ErrNotMountable, n.rel)
	}
	e, err := n.live()
	if err != nil {
		return nil, err
	}
	return e.constraint, nil
}

// Description returns the description text.
func (n Node) Description() (string, error) {
	if n.rel != "" {
		info, err := n.Info()
		return info.Description, err
	}
	e, err := n.live()
	if err != nil {
		return "", err
	}
	return e.description, nil
}
