package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout(filepath.Join("testdata", "bpm.yaml"))
	if err != nil {
		t.Fatalf("LoadLayout failed: %v", err)
	}
	if l.Name != "Instrument" || l.Package != "layout" {
		t.Errorf("Name = %q, Package = %q", l.Name, l.Package)
	}
	if len(l.Enums) != 1 || len(l.Enums[0].Values) != 3 {
		t.Errorf("Enums = %+v", l.Enums)
	}
	if len(l.Nodes) != 4 {
		t.Fatalf("got %d top-level nodes, want 4", len(l.Nodes))
	}
	history := l.Nodes[3].Children[1]
	if history.Name != "history" || !history.Array || history.Size != 16 {
		t.Errorf("history = %+v", history)
	}
}

func TestParseLayoutDefaultsPackage(t *testing.T) {
	l, err := ParseLayout([]byte("name: L\nnodes:\n  - {name: a, type: int32}\n"))
	if err != nil {
		t.Fatalf("ParseLayout failed: %v", err)
	}
	if l.Package != "layout" {
		t.Errorf("Package = %q, want layout", l.Package)
	}
}

func TestParseLayoutErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no name", "nodes:\n  - {name: a, type: int32}\n", "name is required"},
		{"no nodes", "name: L\n", "declares no nodes"},
		{"bad yaml", "name: [L\n", "parsing layout"},
		{"unknown type", "name: L\nnodes:\n  - {name: a, type: complex128}\n", "unknown type"},
		{"bad node name", "name: L\nnodes:\n  - {name: a/b, type: int32}\n", "invalid name"},
		{"duplicate", "name: L\nnodes:\n  - {name: a, type: int32}\n  - {name: a, type: bool}\n", "duplicate name"},
		{"unknown flag", "name: L\nnodes:\n  - {name: a, type: int32, flags: [volatile]}\n", "unknown flag"},
		{"children on leaf", "name: L\nnodes:\n  - name: a\n    type: int32\n    children:\n      - {name: b, type: int32}\n", "only dirs"},
		{"unknown enum", "name: L\nnodes:\n  - {name: a, type: int32, enum: mode}\n", "unknown enum"},
		{"enum on float", "name: L\nenums:\n  - {name: mode, values: [a]}\nnodes:\n  - {name: a, type: float64, enum: mode}\n", "integer type"},
		{"enum default", "name: L\nenums:\n  - {name: mode, values: [a]}\nnodes:\n  - {name: a, type: int32, enum: mode, default: b}\n", "not in enum"},
		{"nested error", "name: L\nnodes:\n  - name: d\n    type: dir\n    children:\n      - {name: x, type: huge}\n", "/d/x"},
		{"duplicate enum", "name: L\nenums:\n  - {name: m, values: [a]}\n  - {name: m, values: [b]}\nnodes:\n  - {name: a, type: int32}\n", "declared twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLayout([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
