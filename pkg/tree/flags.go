package tree

import "strings"

// Flags is the capability bitmask of a node.
type Flags uint16

const (
	// FlagReadable allows reading the value.
	FlagReadable Flags = 1 << iota

	// FlagWritable allows writing the value through handles.
	FlagWritable

	// FlagArray marks an array valued node.
	FlagArray

	// FlagPersistent marks nodes included in saved configuration.
	FlagPersistent

	// FlagConstant rejects every write. It implies not writable.
	FlagConstant

	// FlagExecutable marks command nodes.
	FlagExecutable

	// FlagHidden excludes the node from enumeration. It stays addressable
	// by name.
	FlagHidden

	// FlagSignal marks nodes whose changes are events rather than state.
	FlagSignal

	// FlagReadWrite is the default for value nodes.
	FlagReadWrite = FlagReadable | FlagWritable
)

// Readable returns true if FlagReadable is set.
func (f Flags) Readable() bool { return f&FlagReadable != 0 }

// Writable returns true if FlagWritable is set and FlagConstant is not.
func (f Flags) Writable() bool { return f&FlagWritable != 0 && f&FlagConstant == 0 }

// Array returns true if FlagArray is set.
func (f Flags) Array() bool { return f&FlagArray != 0 }

// Persistent returns true if FlagPersistent is set.
func (f Flags) Persistent() bool { return f&FlagPersistent != 0 }

// Constant returns true if FlagConstant is set.
func (f Flags) Constant() bool { return f&FlagConstant != 0 }

// Executable returns true if FlagExecutable is set.
func (f Flags) Executable() bool { return f&FlagExecutable != 0 }

// Hidden returns true if FlagHidden is set.
func (f Flags) Hidden() bool { return f&FlagHidden != 0 }

// Signal returns true if FlagSignal is set.
func (f Flags) Signal() bool { return f&FlagSignal != 0 }

// normalize enforces that constant nodes are never writable.
func (f Flags) normalize() Flags {
	if f.Constant() {
		f &^= FlagWritable
	}
	return f
}

var flagLetters = []struct {
	flag   Flags
	letter byte
}{
	{FlagReadable, 'R'},
	{FlagWritable, 'W'},
	{FlagArray, 'A'},
	{FlagPersistent, 'P'},
	{FlagConstant, 'C'},
	{FlagExecutable, 'X'},
	{FlagHidden, 'H'},
	{FlagSignal, 'S'},
}

// String renders the flags as letters, e.g. "RWP".
func (f Flags) String() string {
	var b strings.Builder
	for _, fl := range flagLetters {
		if f&fl.flag != 0 {
			b.WriteByte(fl.letter)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// NodeKind is the storage strategy of a node.
type NodeKind uint8

const (
	KindDir NodeKind = iota
	KindValue
	KindReference
	KindFunction
	KindExec
	KindMount
)

// String returns the node kind name.
func (k NodeKind) String() string {
	names := []string{"dir", "value", "reference", "function", "exec", "mount"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// State is the lifecycle state of a node entity.
type State uint8

const (
	Detached State = iota
	Attached
	Destroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attached:
		return "attached"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}
