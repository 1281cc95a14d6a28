package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawLayout is a parameter tree declaration loaded from YAML.
type RawLayout struct {
	Package     string       `yaml:"package"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Enums       []RawEnumDef `yaml:"enums"`
	Nodes       []RawNodeDef `yaml:"nodes"`
}

// RawEnumDef declares a named enum domain.
type RawEnumDef struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Values      []string `yaml:"values"`
}

// RawNodeDef declares one node. Type is a value kind, "dir" or "exec".
type RawNodeDef struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"`
	Array       bool         `yaml:"array"`
	Size        int          `yaml:"size"`
	Enum        string       `yaml:"enum"`
	Default     any          `yaml:"default"`
	Min         any          `yaml:"min"`
	Max         any          `yaml:"max"`
	Above       any          `yaml:"above"`
	Below       any          `yaml:"below"`
	Allowed     []any        `yaml:"allowed"`
	Flags       []string     `yaml:"flags"`
	Description string       `yaml:"description"`
	Children    []RawNodeDef `yaml:"children"`
}

var valueTypes = []string{"bool", "int32", "uint32", "int64", "uint64", "float32", "float64", "string"}

var nodeFlags = []string{"persistent", "hidden", "constant", "readonly", "signal"}

// ParseLayout parses and validates a layout from YAML bytes.
func ParseLayout(data []byte) (*RawLayout, error) {
	var l RawLayout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadLayout reads and parses a layout file.
func LoadLayout(path string) (*RawLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Validate checks names, types and references.
func (l *RawLayout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout name is required")
	}
	if l.Package == "" {
		l.Package = "layout"
	}
	enums := make(map[string]*RawEnumDef)
	for i := range l.Enums {
		e := &l.Enums[i]
		if e.Name == "" || len(e.Values) == 0 {
			return fmt.Errorf("enum %d: name and values are required", i)
		}
		if _, dup := enums[e.Name]; dup {
			return fmt.Errorf("enum %s: declared twice", e.Name)
		}
		enums[e.Name] = e
	}
	if len(l.Nodes) == 0 {
		return fmt.Errorf("layout %s declares no nodes", l.Name)
	}
	return validateNodes("", l.Nodes, enums)
}

func validateNodes(prefix string, nodes []RawNodeDef, enums map[string]*RawEnumDef) error {
	seen := make(map[string]bool)
	for i := range nodes {
		n := &nodes[i]
		path := prefix + "/" + n.Name
		if n.Name == "" || strings.ContainsAny(n.Name, "/ \t") {
			return fmt.Errorf("node %q: invalid name", path)
		}
		if seen[n.Name] {
			return fmt.Errorf("node %s: duplicate name", path)
		}
		seen[n.Name] = true

		for _, f := range n.Flags {
			if !slices.Contains(nodeFlags, f) {
				return fmt.Errorf("node %s: unknown flag %q", path, f)
			}
		}

		switch {
		case n.Type == "dir":
			if err := validateNodes(path, n.Children, enums); err != nil {
				return err
			}
			continue
		case n.Type == "exec":
		case slices.Contains(valueTypes, n.Type):
		default:
			return fmt.Errorf("node %s: unknown type %q", path, n.Type)
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("node %s: only dirs have children", path)
		}
		if n.Enum != "" {
			e, ok := enums[n.Enum]
			if !ok {
				return fmt.Errorf("node %s: unknown enum %q", path, n.Enum)
			}
			if !isInteger(n.Type) {
				return fmt.Errorf("node %s: enum needs an integer type", path)
			}
			if name, ok := n.Default.(string); ok && !slices.Contains(e.Values, name) {
				return fmt.Errorf("node %s: default %q is not in enum %s", path, name, n.Enum)
			}
		}
		if n.Size > 0 {
			n.Array = true
		}
	}
	return nil
}

func isInteger(t string) bool {
	return strings.HasPrefix(t, "int") || strings.HasPrefix(t, "uint")
}
