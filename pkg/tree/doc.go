// Package tree implements the parameter registry: a hierarchical,
// dynamically typed, concurrency-safe tree of named parameters.
//
// # Entities and Handles
//
// A Tree owns an arena of node entities addressed by NodeID. Callers never
// hold entities directly; they hold Node handles, small comparable values that
// name an entity (and optionally a path below a mount point). Every handle
// operation resolves the entity at call time, so a handle outlives the entity
// it points to and simply fails with ErrStaleHandle afterwards:
//
//	t := tree.New(tree.WithEmitter(d))
//	bpm, _ := tree.AddDir(t.Root(), "bpm")
//	gain, _ := tree.AddValue(bpm, "gain", int32(0),
//		tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))))
//
//	_ = tree.Set(gain, int32(-10))
//	g, _ := tree.Get[int32](gain) // -10
//
// # Node Kinds
//
// The storage behind a node is one of a closed set of kinds:
//
//	KindDir        structural node without a value
//	KindValue      owns its storage (scalar or array)
//	KindReference  storage owned elsewhere, including bit fields of a word
//	KindFunction   get/set forwarded to closures
//	KindExec       write-only command, any set executes it
//	KindMount      children live behind a Proxy, usually a remote peer
//
// An EnumDomain may be attached to any integer node; the node then also
// accepts and produces symbolic names.
//
// # Writes and Notifications
//
// A write checks liveness and flags, coerces the candidate to the node kind,
// evaluates the attached constraint outside the node lock, commits the value
// under the lock and finally hands a ValueChanged Notification to the Emitter
// after the lock is released. Constraint rejection never touches stored state.
// Delivery is asynchronous; the Emitter reports dead subscribers, which are
// pruned from the node lazily.
//
// # Locking
//
// Each entity has its own mutex guarding its value, flags and subscriber set.
// Child tables (LocalStructure) have their own lock. No code path holds two
// entity locks at once, and no callback runs while an entity lock is held.
package tree
