package tree

import (
	"time"

	"github.com/bpmctl/paramtree/pkg/value"
)

// ClientID identifies a subscriber connected to an Emitter.
type ClientID uint64

// EventKind classifies a notification.
type EventKind uint8

const (
	// ValueChanged is emitted after a successful write.
	ValueChanged EventKind = iota + 1

	// StructureChanged is emitted on a parent when a child is attached or
	// detached. The payload is the child name.
	StructureChanged

	// ChildDestroyed is emitted on a parent when a child is destroyed. The
	// payload is the child name.
	ChildDestroyed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case ValueChanged:
		return "value-changed"
	case StructureChanged:
		return "structure-changed"
	case ChildDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Notification describes one change. It is shared read-only between all
// receiving clients and must not be modified after Emit.
type Notification struct {
	// Node is the node that changed.
	Node Node

	// Kind is the event kind.
	Kind EventKind

	// Payload is the written value for ValueChanged, the child name
	// otherwise.
	Payload value.Value

	// Index is the array position of the first written element.
	Index int

	// Time is when the change was committed.
	Time time.Time
}

// Emitter delivers notifications to subscribed clients.
type Emitter interface {
	// Connected reports whether id is a live client.
	Connected(id ClientID) bool

	// Emit queues n for every client in subs and returns the clients that
	// are unknown or broken. Emit must not block on delivery.
	Emit(subs []ClientID, n *Notification) (dead []ClientID)
}
