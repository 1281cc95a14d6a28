package wire

import (
	"errors"
	"testing"

	"github.com/bpmctl/paramtree/pkg/value"
)

func TestTypedValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
	}{
		{"bool", value.Bool(true)},
		{"i32", value.Int32(-10)},
		{"u32", value.Uint32(4_000_000_000)},
		{"i64", value.Int64(-1 << 40)},
		{"u64", value.Uint64(1 << 63)},
		{"f32", value.Float32(0.25)},
		{"f64", value.Float64(-3.5)},
		{"string", value.String("MANUAL")},
		{"empty string", value.String("")},
		{"i32 array", value.ArrayOf([]int32{1, -2, 3})},
		{"f32 array", value.ArrayOf([]float32{1.5, 2.5})},
		{"bool array", value.ArrayOf([]bool{true, false})},
		{"empty array", value.ArrayOf([]uint32{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(FromValue(tt.v))
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var tv TypedValue
			if err := Unmarshal(data, &tv); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			got, err := tv.Value()
			if err != nil {
				t.Fatalf("Value failed: %v", err)
			}
			if !value.Equal(got, tt.v) {
				t.Errorf("round trip = %v (%s), want %v (%s)", got, got.Kind(), tt.v, tt.v.Kind())
			}
		})
	}
}

func TestTypedValueRejects(t *testing.T) {
	tests := []struct {
		name string
		tv   TypedValue
		want error
	}{
		{"i32 overflow", TypedValue{Kind: uint8(value.KindInt32), Ints: []int64{1 << 40}}, value.ErrOutOfRange},
		{"u32 overflow", TypedValue{Kind: uint8(value.KindUint32), Uints: []uint64{1 << 40}}, value.ErrOutOfRange},
		{"scalar without element", TypedValue{Kind: uint8(value.KindBool)}, value.ErrKindMismatch},
		{"scalar with two elements", TypedValue{Kind: uint8(value.KindString), Strings: []string{"a", "b"}}, value.ErrKindMismatch},
		{"unknown kind", TypedValue{Kind: 42}, value.ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tv.Value()
			if !errors.Is(err, tt.want) {
				t.Errorf("Value() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTypedValueInvalid(t *testing.T) {
	v, err := FromValue(value.Value{}).Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v.IsValid() {
		t.Errorf("zero value round trip = %v, want invalid", v)
	}
}
