package tree

import (
	"fmt"
	"io"
)

// attach links a detached entity under p.
func attach(t *Tree, p, e *entity) error {
	if err := t.checkNotAncestor(e.id, p.id); err != nil {
		return err
	}

	// Reserve e so concurrent attaches fail.
	e.mu.Lock()
	if e.state != Detached || e.parent != 0 {
		e.mu.Unlock()
		if e.state == Destroyed {
			return ErrStaleHandle
		}
		return fmt.Errorf("%w: %q", ErrNotDetached, e.name)
	}
	e.parent = p.id
	hidden := e.flags.Hidden()
	e.mu.Unlock()

	rollback := func(err error) error {
		e.mu.Lock()
		if e.parent == p.id {
			e.parent = 0
		}
		e.mu.Unlock()
		return err
	}

	if _, st := p.snapshot(); st == Destroyed {
		return rollback(ErrStaleHandle)
	}
	if p.local == nil {
		return rollback(fmt.Errorf("%w: cannot attach %q", ErrNotMountable, e.name))
	}
	if err := p.local.add(childEntry{name: e.name, id: e.id, hidden: hidden}); err != nil {
		return rollback(err)
	}

	e.mu.Lock()
	if e.state == Detached {
		e.state = Attached
	}
	e.mu.Unlock()

	t.notifyParent(p.id, StructureChanged, e.name)
	return nil
}

// checkNotAncestor fails if id is target or one of its ancestors.
func (t *Tree) checkNotAncestor(id, target NodeID) error {
	for cur := target; cur != 0; {
		if cur == id {
			return ErrCycle
		}
		e, err := t.lookup(cur)
		if err != nil {
			return err
		}
		e.mu.Lock()
		cur = e.parent
		e.mu.Unlock()
	}
	return nil
}

// localEntity resolves a handle that must point at a local entity.
func (n Node) localEntity() (*entity, error) {
	if n.rel != "" {
		return nil, fmt.Errorf("%w: %s", ErrNotMountable, n.rel)
	}
	return n.entity()
}

// Attach links a detached node under parent.
func Attach(parent, n Node) error {
	if parent.t != n.t {
		return fmt.Errorf("%w: nodes belong to different trees", ErrNotFound)
	}
	p, err := parent.localEntity()
	if err != nil {
		return err
	}
	e, err := n.localEntity()
	if err != nil {
		return err
	}
	return attach(n.t, p, e)
}

// Detach unlinks n from its parent. The node stays alive and can be
// attached elsewhere.
func Detach(n Node) error {
	e, err := n.localEntity()
	if err != nil {
		return err
	}
	if e.id == n.t.root {
		return ErrRootNode
	}

	e.mu.Lock()
	if e.state == Destroyed {
		e.mu.Unlock()
		return ErrStaleHandle
	}
	if e.state != Attached {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotAttached, e.name)
	}
	parent := e.parent
	e.parent = 0
	e.state = Detached
	e.mu.Unlock()

	if p, err := n.t.lookup(parent); err == nil && p.local != nil {
		p.local.remove(e.name, e.id)
	}
	n.t.notifyParent(parent, StructureChanged, e.name)
	return nil
}

// Destroy removes n and its whole subtree from the tree. Subscribers of
// destroyed nodes are dropped without a further notification; subscribers
// of the parent receive a ChildDestroyed event.
func Destroy(n Node) error {
	e, err := n.localEntity()
	if err != nil {
		return err
	}
	if e.id == n.t.root {
		return ErrRootNode
	}
	return n.t.destroy(e)
}

func (t *Tree) destroy(e *entity) error {
	e.mu.Lock()
	if e.state == Destroyed {
		e.mu.Unlock()
		return ErrStaleHandle
	}
	dropped := len(e.subs)
	e.subs = nil
	e.state = Destroyed
	parent := e.parent
	e.parent = 0
	e.mu.Unlock()

	if e.local != nil {
		for _, c := range e.local.drain() {
			if ce, err := t.lookup(c.id); err == nil {
				_ = t.destroy(ce)
			}
		}
	}
	if p, err := t.lookup(parent); err == nil && p.local != nil {
		p.local.remove(e.name, e.id)
	}
	t.remove(e.id)

	if c, ok := e.proxy.(io.Closer); ok {
		if err := c.Close(); err != nil {
			t.logger.Warn("closing mount failed", "node", e.name, "error", err)
		}
	}
	t.logger.Debug("node destroyed", "node", e.String(), "subscribers", dropped)

	t.notifyParent(parent, ChildDestroyed, e.name)
	return nil
}

// Adopt moves every child of from under to, leaving the children's own
// subtrees untouched. It fails without moving anything if a name collides.
func Adopt(from, to Node) error {
	_, rejected, err := moveChildren(from, to, true)
	if err != nil {
		return err
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%w: %v", ErrDuplicateName, rejected)
	}
	return nil
}

// Merge moves the children of from under to. Children whose names already
// exist under to stay with from; their names are returned.
func Merge(from, to Node) ([]string, error) {
	_, skipped, err := moveChildren(from, to, false)
	return skipped, err
}

func moveChildren(from, to Node, strict bool) (moved, rejected []string, err error) {
	if from.t != to.t {
		return nil, nil, fmt.Errorf("%w: nodes belong to different trees", ErrNotFound)
	}
	fe, err := from.localEntity()
	if err != nil {
		return nil, nil, err
	}
	te, err := to.localEntity()
	if err != nil {
		return nil, nil, err
	}
	if fe.id == te.id {
		return nil, nil, nil
	}
	if fe.local == nil || te.local == nil {
		return nil, nil, ErrNotMountable
	}
	for _, st := range []*entity{fe, te} {
		if _, s := st.snapshot(); s == Destroyed {
			return nil, nil, ErrStaleHandle
		}
	}
	t := from.t
	if err := t.checkNotAncestor(fe.id, te.id); err != nil {
		return nil, nil, err
	}
	if strict {
		if names := te.local.conflicts(fe.local.entries()); len(names) > 0 {
			return nil, names, nil
		}
	}

	ok, back := te.local.addAll(fe.local.drain())
	for _, c := range back {
		if err := fe.local.add(c); err != nil {
			t.logger.Warn("lost child during merge", "node", c.name, "error", err)
		}
		rejected = append(rejected, c.name)
	}
	for _, c := range ok {
		if ce, err := t.lookup(c.id); err == nil {
			ce.mu.Lock()
			ce.parent = te.id
			ce.mu.Unlock()
		}
		moved = append(moved, c.name)
	}
	for _, name := range moved {
		t.notifyParent(fe.id, StructureChanged, name)
		t.notifyParent(te.id, StructureChanged, name)
	}
	return moved, rejected, nil
}
