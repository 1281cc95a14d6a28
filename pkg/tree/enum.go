package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// EnumEntry is one symbolic name of an EnumDomain.
type EnumEntry struct {
	Name  string
	Value int64
}

// EnumDomain maps symbolic names to integers. It is immutable.
type EnumDomain struct {
	entries []EnumEntry
	byName  map[string]int64
	byValue map[int64]string
}

// NewEnumDomain builds a domain from entries, in order. Names and values
// must be unique.
func NewEnumDomain(entries ...EnumEntry) (*EnumDomain, error) {
	d := &EnumDomain{
		entries: make([]EnumEntry, 0, len(entries)),
		byName:  make(map[string]int64, len(entries)),
		byValue: make(map[int64]string, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: empty enum name", ErrInvalidName)
		}
		if _, dup := d.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: enum name %q", ErrDuplicateName, e.Name)
		}
		if _, dup := d.byValue[e.Value]; dup {
			return nil, fmt.Errorf("%w: enum value %d", ErrDuplicateName, e.Value)
		}
		d.entries = append(d.entries, e)
		d.byName[e.Name] = e.Value
		d.byValue[e.Value] = e.Name
	}
	return d, nil
}

// Enum returns a domain assigning 0, 1, 2, ... to names. It panics on
// duplicate or empty names and is meant for static tables.
func Enum(names ...string) *EnumDomain {
	entries := make([]EnumEntry, len(names))
	for i, n := range names {
		entries[i] = EnumEntry{Name: n, Value: int64(i)}
	}
	d, err := NewEnumDomain(entries...)
	if err != nil {
		panic(err)
	}
	return d
}

// Value returns the integer for name.
func (d *EnumDomain) Value(name string) (int64, bool) {
	v, ok := d.byName[name]
	return v, ok
}

// Name returns the name for v.
func (d *EnumDomain) Name(v int64) (string, bool) {
	n, ok := d.byValue[v]
	return n, ok
}

// Names returns the names in declaration order.
func (d *EnumDomain) Names() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Name
	}
	return out
}

// Entries returns a copy of the entries in declaration order.
func (d *EnumDomain) Entries() []EnumEntry {
	return append([]EnumEntry(nil), d.entries...)
}

// Len returns the number of entries.
func (d *EnumDomain) Len() int { return len(d.entries) }

// String renders the domain as "enum{AUTO=0, MANUAL=1}".
func (d *EnumDomain) String() string {
	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = e.Name + "=" + strconv.FormatInt(e.Value, 10)
	}
	return "enum{" + strings.Join(parts, ", ") + "}"
}
