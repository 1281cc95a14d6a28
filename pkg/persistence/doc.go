// Package persistence saves and restores the values of persistent nodes.
//
// A Snapshot walks a subtree and records every node flagged Persistent as
// text, keyed by its path below the snapshot root. Apply writes a document
// back through the ordinary validation path, so a stored value that no
// longer satisfies its constraint is reported and skipped instead of
// loaded. Documents are stored as YAML files that operators may edit; a
// Watcher re-applies the file when it changes on disk and an AutoSaver
// writes it back whenever a persistent node changes.
package persistence
