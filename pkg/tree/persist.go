package tree

import (
	"errors"
	"fmt"

	"github.com/bpmctl/paramtree/pkg/value"
)

// PersistValue returns the value to store for a persistent node. It ignores
// the readable flag.
func (n Node) PersistValue() (value.Value, error) {
	e, err := n.persistent()
	if err != nil {
		return value.Value{}, err
	}
	if e.nodeKind == KindExec {
		return value.Value{}, fmt.Errorf("%w: %s is a command", ErrNotReadable, e.name)
	}
	return n.read(0, -1, true)
}

// RestoreValue loads v into a persistent node. It ignores the writable
// flag, validates like any write and notifies subscribers. Array value
// nodes take the stored length; a rejected value leaves the node as it was.
func (n Node) RestoreValue(v value.Value) error {
	if _, err := n.persistent(); err != nil {
		return err
	}
	return n.write(0, v, writeReplace)
}

func (n Node) persistent() (*entity, error) {
	e, err := n.localEntity()
	if err != nil {
		return nil, err
	}
	flags, st := e.snapshot()
	if st == Destroyed {
		return nil, ErrStaleHandle
	}
	if !flags.Persistent() {
		return nil, fmt.Errorf("%w: %s", ErrNotPersistent, e.name)
	}
	return e, nil
}

// PersistentNodes returns the persistent nodes at and below n in
// depth-first order. Hidden children are included; mounts are not entered.
func (n Node) PersistentNodes() ([]Node, error) {
	var out []Node
	err := n.walkLocal(func(c Node, e *entity) {
		if flags, _ := e.snapshot(); flags.Persistent() {
			out = append(out, c)
		}
	})
	return out, err
}

func (n Node) walkLocal(fn func(Node, *entity)) error {
	e, err := n.localEntity()
	if err != nil {
		return err
	}
	if _, st := e.snapshot(); st == Destroyed {
		return ErrStaleHandle
	}
	fn(n, e)
	if e.proxy != nil {
		return nil
	}
	children, err := n.allChildren()
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := c.walkLocal(fn); err != nil && !errors.Is(err, ErrStaleHandle) {
			return err
		}
	}
	return nil
}
