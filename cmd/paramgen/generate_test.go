package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/imports"
)

func mustContain(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Errorf("output missing %q\n---\n%s", want, output)
	}
}

func generateBPM(t *testing.T) string {
	t.Helper()
	l, err := LoadLayout(filepath.Join("testdata", "bpm.yaml"))
	if err != nil {
		t.Fatalf("LoadLayout failed: %v", err)
	}
	code, err := Generate(l, GenerateOptions{Module: defaultModule, Source: "bpm.yaml"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	formatted, err := imports.Process("instrument_gen.go", []byte(code), nil)
	if err != nil {
		t.Fatalf("generated code does not parse: %v\n---\n%s", err, code)
	}
	return string(formatted)
}

func TestGenerateHeader(t *testing.T) {
	output := generateBPM(t)
	mustContain(t, output, "// Code generated by paramgen from bpm.yaml. DO NOT EDIT.")
	mustContain(t, output, "package layout")
	mustContain(t, output, `"github.com/bpmctl/paramtree/pkg/constraint"`)
	mustContain(t, output, `"github.com/bpmctl/paramtree/pkg/tree"`)
}

func TestGenerateEnumDomain(t *testing.T) {
	output := generateBPM(t)
	mustContain(t, output, `var AcquisitionModeDomain = tree.Enum("idle", "turn-by-turn", "slow-acquisition")`)
	mustContain(t, output, "// AcquisitionModeDomain selects how the digitizer samples the pickup signals.")
}

func TestGenerateStruct(t *testing.T) {
	output := generateBPM(t)
	for _, field := range []string{"Serial", "Frontend", "FrontendGain", "FrontendOffsets", "AcquisitionMode", "AcquisitionTrigger", "PositionHistory"} {
		mustContain(t, output, "\t"+field+" ")
	}
	mustContain(t, output, "// FrontendGain is frontend/gain: front-end gain in dB.")
	mustContain(t, output, "type InstrumentHandlers struct {")
	mustContain(t, output, "AcquisitionTrigger func() error")
}

func TestGenerateFactories(t *testing.T) {
	output := generateBPM(t)
	mustContain(t, output, `tree.AddValue(parent, "serial", "BPM-0000", tree.Constant(), tree.Hidden())`)
	mustContain(t, output, `tree.AddDir(parent, "frontend")`)
	mustContain(t, output, `tree.AddValue(n.Frontend, "gain", int32(-20), tree.WithConstraint(constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))), tree.Persistent(), tree.WithDescription("Front-end gain in dB"))`)
	mustContain(t, output, `constraint.Set(constraint.Val[uint32](0), constraint.Val[uint32](6), constraint.Val[uint32](12), constraint.Val[uint32](18))`)
	mustContain(t, output, `tree.AddValueArray(n.Frontend, "offsets", []float64{0, 0, 0, 0}`)
	mustContain(t, output, `tree.AddValue(n.Acquisition, "mode", int32(1), tree.WithEnum(AcquisitionModeDomain), tree.Persistent())`)
	mustContain(t, output, `constraint.And(constraint.Gt(constraint.Val[uint32](0)), constraint.Lt(constraint.Val[uint32](65537)))`)
	mustContain(t, output, `tree.AddValue(n.Acquisition, "triggers", uint64(0), tree.ReadOnly())`)
	mustContain(t, output, `tree.AddExec(n.Acquisition, "trigger", h.AcquisitionTrigger, tree.WithDescription("Starts one acquisition"))`)
	mustContain(t, output, `tree.AddValueArray(n.Position, "history", make([]float64, 16), tree.ReadOnly())`)
}

func TestGenerateBuildFunction(t *testing.T) {
	output := generateBPM(t)
	mustContain(t, output, "func BuildInstrument(parent tree.Node, h InstrumentHandlers) (*Instrument, error) {")
	mustContain(t, output, `return nil, fmt.Errorf("build Instrument: no handler for acquisition/trigger")`)
	mustContain(t, output, `return nil, fmt.Errorf("build Instrument: position/history: %w", err)`)

	// Parents are created before their children.
	if strings.Index(output, "n.Position, err =") > strings.Index(output, "n.PositionX, err =") {
		t.Error("position/x is created before its parent")
	}
}

func TestGenerateWithoutConstraints(t *testing.T) {
	l, err := ParseLayout([]byte(`
name: Minimal
nodes:
  - name: enabled
    type: bool
    default: true
`))
	if err != nil {
		t.Fatalf("ParseLayout failed: %v", err)
	}
	code, err := Generate(l, GenerateOptions{Module: defaultModule})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if strings.Contains(code, "pkg/constraint") {
		t.Error("constraint package imported without constraints")
	}
	mustContain(t, code, `tree.AddValue(parent, "enabled", true)`)
	mustContain(t, code, "func BuildMinimal(parent tree.Node) (*Minimal, error) {")
}

func TestGenerateErrors(t *testing.T) {
	tests := map[string]string{
		"one-sided range": `
name: L
nodes:
  - {name: gain, type: int32, min: 0}`,
		"negative unsigned": `
name: L
nodes:
  - {name: count, type: uint32, default: -1}`,
		"fraction for integer": `
name: L
nodes:
  - {name: count, type: int64, default: 1.5}`,
		"array size mismatch": `
name: L
nodes:
  - {name: offsets, type: float64, size: 2, default: [1, 2, 3]}`,
		"string for bool": `
name: L
nodes:
  - {name: on, type: bool, default: "yes"}`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			l, err := ParseLayout([]byte(src))
			if err != nil {
				t.Fatalf("ParseLayout failed: %v", err)
			}
			if _, err := Generate(l, GenerateOptions{Module: defaultModule}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunWritesFormattedFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "layout", "instrument_gen.go")
	if err := run(filepath.Join("testdata", "bpm.yaml"), out, "bpmlayout", defaultModule); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	mustContain(t, string(data), "package bpmlayout")
	mustContain(t, string(data), "\tif n.FrontendGain, err = tree.AddValue(")
}

func TestGoName(t *testing.T) {
	tests := map[string]string{
		"frontend/gain":       "FrontendGain",
		"acquisition-mode":    "AcquisitionMode",
		"position/sum_signal": "PositionSumSignal",
		"x":                   "X",
	}
	for in, want := range tests {
		if got := goName(in); got != want {
			t.Errorf("goName(%q) = %q, want %q", in, got, want)
		}
	}
}
