package value

import (
	"errors"
	"fmt"
	"strings"
)

// Value errors.
var (
	ErrKindMismatch = errors.New("kind mismatch")
	ErrOutOfRange   = errors.New("position out of range")
	ErrIncomparable = errors.New("values are not comparable")
	ErrInvalidKind  = errors.New("invalid kind")
	ErrSyntax       = errors.New("invalid value syntax")
)

// Value is an immutable scalar or homogeneous array of one primitive kind.
// The zero Value is invalid.
type Value struct {
	kind  Kind
	array bool
	data  any // T for scalars, []T for arrays
}

// Of returns a scalar value.
func Of[T Primitive](v T) Value {
	return Value{kind: KindOf[T](), data: v}
}

// ArrayOf returns an array value holding a copy of vs.
func ArrayOf[T Primitive](vs []T) Value {
	c := make([]T, len(vs))
	copy(c, vs)
	return Value{kind: KindOf[T](), array: true, data: c}
}

// Shorthand constructors.
func Bool(v bool) Value       { return Of(v) }
func Int32(v int32) Value     { return Of(v) }
func Uint32(v uint32) Value   { return Of(v) }
func Int64(v int64) Value     { return Of(v) }
func Uint64(v uint64) Value   { return Of(v) }
func Float32(v float32) Value { return Of(v) }
func Float64(v float64) Value { return Of(v) }
func String(v string) Value   { return Of(v) }

// Zero returns the zero scalar of kind.
func Zero(kind Kind) Value {
	switch kind {
	case KindBool:
		return Of(false)
	case KindInt32:
		return Of(int32(0))
	case KindUint32:
		return Of(uint32(0))
	case KindInt64:
		return Of(int64(0))
	case KindUint64:
		return Of(uint64(0))
	case KindFloat32:
		return Of(float32(0))
	case KindFloat64:
		return Of(float64(0))
	case KindString:
		return Of("")
	}
	return Value{}
}

// ZeroArray returns an array of n zero elements of kind.
func ZeroArray(kind Kind, n int) Value {
	switch kind {
	case KindBool:
		return Value{kind: kind, array: true, data: make([]bool, n)}
	case KindInt32:
		return Value{kind: kind, array: true, data: make([]int32, n)}
	case KindUint32:
		return Value{kind: kind, array: true, data: make([]uint32, n)}
	case KindInt64:
		return Value{kind: kind, array: true, data: make([]int64, n)}
	case KindUint64:
		return Value{kind: kind, array: true, data: make([]uint64, n)}
	case KindFloat32:
		return Value{kind: kind, array: true, data: make([]float32, n)}
	case KindFloat64:
		return Value{kind: kind, array: true, data: make([]float64, n)}
	case KindString:
		return Value{kind: kind, array: true, data: make([]string, n)}
	}
	return Value{}
}

// FromAny wraps a Go value of one of the primitive types or a slice thereof.
// Plain int is mapped to i64.
func FromAny(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case bool:
		return Of(v), nil
	case int32:
		return Of(v), nil
	case uint32:
		return Of(v), nil
	case int64:
		return Of(v), nil
	case int:
		return Of(int64(v)), nil
	case uint64:
		return Of(v), nil
	case float32:
		return Of(v), nil
	case float64:
		return Of(v), nil
	case string:
		return Of(v), nil
	case []bool:
		return ArrayOf(v), nil
	case []int32:
		return ArrayOf(v), nil
	case []uint32:
		return ArrayOf(v), nil
	case []int64:
		return ArrayOf(v), nil
	case []uint64:
		return ArrayOf(v), nil
	case []float32:
		return ArrayOf(v), nil
	case []float64:
		return ArrayOf(v), nil
	case []string:
		return ArrayOf(v), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported Go type %T", ErrInvalidKind, x)
}

// Kind returns the primitive kind.
func (v Value) Kind() Kind { return v.kind }

// IsArray reports whether v is an array value.
func (v Value) IsArray() bool { return v.array }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind.IsValid() }

// Size returns 1 for scalars and the element count for arrays.
func (v Value) Size() int {
	if !v.IsValid() {
		return 0
	}
	if !v.array {
		return 1
	}
	switch d := v.data.(type) {
	case []bool:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// Interface returns the held Go value. Arrays are returned as a copy.
func (v Value) Interface() any {
	if !v.array {
		return v.data
	}
	c, _ := v.Slice(0, v.Size())
	return c.data
}

// As reads a scalar value as T.
func As[T Primitive](v Value) (T, error) {
	var zero T
	want := KindOf[T]()
	if v.array {
		return zero, fmt.Errorf("%w: have %s array, want scalar %s", ErrKindMismatch, v.kind, want)
	}
	if v.kind == want {
		return v.data.(T), nil
	}
	switch {
	case want == KindString && v.kind == KindBool:
		return any(FormatBool(v.data.(bool))).(T), nil
	case want == KindBool && v.kind == KindString:
		b, err := ParseBool(v.data.(string))
		if err != nil {
			return zero, err
		}
		return any(b).(T), nil
	}
	return zero, fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, v.kind, want)
}

// AsArray reads an array value as []T. The result is a copy.
func AsArray[T Primitive](v Value) ([]T, error) {
	want := KindOf[T]()
	if !v.array {
		return nil, fmt.Errorf("%w: have scalar %s, want %s array", ErrKindMismatch, v.kind, want)
	}
	if v.kind == want {
		src := v.data.([]T)
		out := make([]T, len(src))
		copy(out, src)
		return out, nil
	}
	if (want == KindString && v.kind == KindBool) || (want == KindBool && v.kind == KindString) {
		out := make([]T, 0, v.Size())
		for i := 0; i < v.Size(); i++ {
			e, _ := v.Index(i)
			t, err := As[T](e)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: have %s array, want %s array", ErrKindMismatch, v.kind, want)
}

// Index returns element i of an array as a scalar. For scalars only index 0
// is valid and returns v itself.
func (v Value) Index(i int) (Value, error) {
	if i < 0 || i >= v.Size() {
		return Value{}, fmt.Errorf("%w: index %d, size %d", ErrOutOfRange, i, v.Size())
	}
	if !v.array {
		return v, nil
	}
	switch d := v.data.(type) {
	case []bool:
		return Of(d[i]), nil
	case []int32:
		return Of(d[i]), nil
	case []uint32:
		return Of(d[i]), nil
	case []int64:
		return Of(d[i]), nil
	case []uint64:
		return Of(d[i]), nil
	case []float32:
		return Of(d[i]), nil
	case []float64:
		return Of(d[i]), nil
	case []string:
		return Of(d[i]), nil
	}
	return Value{}, ErrInvalidKind
}

// Slice returns count elements starting at pos as a new array value.
func (v Value) Slice(pos, count int) (Value, error) {
	if !v.array {
		return Value{}, fmt.Errorf("%w: slice of scalar", ErrKindMismatch)
	}
	switch d := v.data.(type) {
	case []bool:
		return sliceOf(d, pos, count)
	case []int32:
		return sliceOf(d, pos, count)
	case []uint32:
		return sliceOf(d, pos, count)
	case []int64:
		return sliceOf(d, pos, count)
	case []uint64:
		return sliceOf(d, pos, count)
	case []float32:
		return sliceOf(d, pos, count)
	case []float64:
		return sliceOf(d, pos, count)
	case []string:
		return sliceOf(d, pos, count)
	}
	return Value{}, ErrInvalidKind
}

func sliceOf[T Primitive](d []T, pos, count int) (Value, error) {
	if pos < 0 || count < 0 || pos+count > len(d) {
		return Value{}, fmt.Errorf("%w: pos %d count %d size %d", ErrOutOfRange, pos, count, len(d))
	}
	return ArrayOf(d[pos : pos+count]), nil
}

// Splice returns a copy of the array v with the elements of src written at
// pos. A scalar src is written as a single element.
func (v Value) Splice(pos int, src Value) (Value, error) {
	if !v.array {
		return Value{}, fmt.Errorf("%w: splice into scalar", ErrKindMismatch)
	}
	if src.kind != v.kind {
		return Value{}, fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, src.kind, v.kind)
	}
	switch d := v.data.(type) {
	case []bool:
		return spliceOf(d, pos, src)
	case []int32:
		return spliceOf(d, pos, src)
	case []uint32:
		return spliceOf(d, pos, src)
	case []int64:
		return spliceOf(d, pos, src)
	case []uint64:
		return spliceOf(d, pos, src)
	case []float32:
		return spliceOf(d, pos, src)
	case []float64:
		return spliceOf(d, pos, src)
	case []string:
		return spliceOf(d, pos, src)
	}
	return Value{}, ErrInvalidKind
}

func spliceOf[T Primitive](d []T, pos int, src Value) (Value, error) {
	var elems []T
	if src.array {
		elems = src.data.([]T)
	} else {
		elems = []T{src.data.(T)}
	}
	if pos < 0 || pos+len(elems) > len(d) {
		return Value{}, fmt.Errorf("%w: pos %d count %d size %d", ErrOutOfRange, pos, len(elems), len(d))
	}
	out := make([]T, len(d))
	copy(out, d)
	copy(out[pos:], elems)
	return Value{kind: KindOf[T](), array: true, data: out}, nil
}

// Resize returns a copy of the array v truncated or zero-extended to n.
func (v Value) Resize(n int) (Value, error) {
	if !v.array {
		return Value{}, fmt.Errorf("%w: resize of scalar", ErrKindMismatch)
	}
	if n < 0 {
		return Value{}, fmt.Errorf("%w: negative size %d", ErrOutOfRange, n)
	}
	out := ZeroArray(v.kind, n)
	keep := min(n, v.Size())
	if keep == 0 {
		return out, nil
	}
	head, err := v.Slice(0, keep)
	if err != nil {
		return Value{}, err
	}
	return out.Splice(0, head)
}

// Equal reports whether a and b have the same kind, shape and elements.
func Equal(a, b Value) bool {
	if a.kind != b.kind || a.array != b.array || a.Size() != b.Size() {
		return false
	}
	if !a.array {
		return a.data == b.data
	}
	for i := 0; i < a.Size(); i++ {
		x, _ := a.Index(i)
		y, _ := b.Index(i)
		if x.data != y.data {
			return false
		}
	}
	return true
}

// String renders scalars as their element text and arrays as "[a, b]".
func (v Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	elems := v.Strings()
	if !v.array {
		return elems[0]
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
