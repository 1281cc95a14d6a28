// Package value implements the type-erased value container used across the
// parameter tree.
//
// A Value holds exactly one of a fixed set of primitive kinds, either as a
// scalar or as a homogeneous array:
//
//	bool, i32, u32, i64, u64, f32, f64, string
//
// Construction fixes the kind. Reading a Value as a different kind fails with
// ErrKindMismatch; the only exception is bool, which is rendered to and parsed
// from strings with FormatBool and ParseBool:
//
//	v := value.Of(int32(-10))
//	n, err := value.As[int32](v)  // -10, nil
//	_, err = value.As[int64](v)   // ErrKindMismatch
//
//	b := value.Bool(true)
//	s, _ := value.As[string](b)   // "true"
//
// Values are immutable. Array helpers (Slice, Splice, Resize) return new
// values and never share backing storage with their input.
package value
