package tree

import (
	"fmt"
	"strings"
)

// Path is a sequence of node names relative to some anchor.
type Path []string

// ParsePath parses "a/b/c". Leading and trailing slashes are ignored, so
// "/a/b" and "a/b/" are equivalent. "" and "/" yield the empty path.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if err := checkName(p); err != nil {
			return nil, fmt.Errorf("path %q: %w", s, err)
		}
	}
	return Path(parts), nil
}

// String returns the absolute form "/a/b".
func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Join returns a new path with names appended.
func (p Path) Join(names ...string) Path {
	out := make(Path, 0, len(p)+len(names))
	out = append(out, p...)
	return append(out, names...)
}

// IsEmpty returns true for the empty path.
func (p Path) IsEmpty() bool { return len(p) == 0 }

func (p Path) key() string { return strings.Join(p, "/") }

func pathFromKey(k string) Path {
	if k == "" {
		return nil
	}
	return Path(strings.Split(k, "/"))
}

func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}
