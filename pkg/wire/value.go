package wire

import (
	"fmt"
	"math"

	"github.com/bpmctl/paramtree/pkg/value"
)

// TypedValue is the wire form of a value.Value. Exactly one slice is
// populated, chosen by Kind; scalars are one-element slices with Array
// unset.
//
// CBOR encoding:
//
//	{
//	  1: kind,      // value.Kind
//	  2: array,     // bool, omitted for scalars
//	  3: bools,
//	  4: ints,      // i32, i64
//	  5: uints,     // u32, u64
//	  6: floats,    // f32, f64
//	  7: strings
//	}
type TypedValue struct {
	Kind    uint8     `cbor:"1,keyasint"`
	Array   bool      `cbor:"2,keyasint,omitempty"`
	Bools   []bool    `cbor:"3,keyasint,omitempty"`
	Ints    []int64   `cbor:"4,keyasint,omitempty"`
	Uints   []uint64  `cbor:"5,keyasint,omitempty"`
	Floats  []float64 `cbor:"6,keyasint,omitempty"`
	Strings []string  `cbor:"7,keyasint,omitempty"`
}

// FromValue converts v to its wire form. The zero Value encodes as kind 0.
func FromValue(v value.Value) TypedValue {
	tv := TypedValue{Kind: uint8(v.Kind()), Array: v.IsArray()}
	switch x := v.Interface().(type) {
	case bool:
		tv.Bools = []bool{x}
	case []bool:
		tv.Bools = x
	case int32:
		tv.Ints = []int64{int64(x)}
	case []int32:
		tv.Ints = convertSlice[int32, int64](x)
	case int64:
		tv.Ints = []int64{x}
	case []int64:
		tv.Ints = x
	case uint32:
		tv.Uints = []uint64{uint64(x)}
	case []uint32:
		tv.Uints = convertSlice[uint32, uint64](x)
	case uint64:
		tv.Uints = []uint64{x}
	case []uint64:
		tv.Uints = x
	case float32:
		tv.Floats = []float64{float64(x)}
	case []float32:
		tv.Floats = convertSlice[float32, float64](x)
	case float64:
		tv.Floats = []float64{x}
	case []float64:
		tv.Floats = x
	case string:
		tv.Strings = []string{x}
	case []string:
		tv.Strings = x
	}
	return tv
}

// Value converts tv back to a value.Value. Integer elements outside the
// range of a 32-bit kind fail with value.ErrOutOfRange.
func (tv TypedValue) Value() (value.Value, error) {
	kind := value.Kind(tv.Kind)
	switch kind {
	case value.KindInvalid:
		return value.Value{}, nil
	case value.KindBool:
		return build(tv, tv.Bools)
	case value.KindInt32:
		xs, err := narrowInts[int32](tv.Ints, math.MinInt32, math.MaxInt32)
		if err != nil {
			return value.Value{}, err
		}
		return build(tv, xs)
	case value.KindInt64:
		return build(tv, tv.Ints)
	case value.KindUint32:
		for _, u := range tv.Uints {
			if u > math.MaxUint32 {
				return value.Value{}, fmt.Errorf("%w: %d is not representable as %s", value.ErrOutOfRange, u, kind)
			}
		}
		return build(tv, convertSlice[uint64, uint32](tv.Uints))
	case value.KindUint64:
		return build(tv, tv.Uints)
	case value.KindFloat32:
		return build(tv, convertSlice[float64, float32](tv.Floats))
	case value.KindFloat64:
		return build(tv, tv.Floats)
	case value.KindString:
		return build(tv, tv.Strings)
	}
	return value.Value{}, fmt.Errorf("%w: %d", value.ErrInvalidKind, tv.Kind)
}

func build[T value.Primitive](tv TypedValue, xs []T) (value.Value, error) {
	if tv.Array {
		return value.ArrayOf(xs), nil
	}
	if len(xs) != 1 {
		return value.Value{}, fmt.Errorf("%w: scalar %s carries %d elements", value.ErrKindMismatch, value.Kind(tv.Kind), len(xs))
	}
	return value.Of(xs[0]), nil
}

type number interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func convertSlice[From, To number](xs []From) []To {
	out := make([]To, len(xs))
	for i, x := range xs {
		out[i] = To(x)
	}
	return out
}

func narrowInts[T ~int32](xs []int64, lo, hi int64) ([]T, error) {
	out := make([]T, len(xs))
	for i, x := range xs {
		if x < lo || x > hi {
			return nil, fmt.Errorf("%w: %d is not representable as %s", value.ErrOutOfRange, x, value.KindInt32)
		}
		out[i] = T(x)
	}
	return out, nil
}
