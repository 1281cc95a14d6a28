package value

import (
	"fmt"
	"strings"
)

// Kind is the primitive type of a value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindString
)

var kindNames = []string{
	"invalid", "bool", "i32", "u32", "i64", "u64", "f32", "f64", "string",
}

// String returns the short kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ParseKind parses a short kind name as returned by Kind.String.
// Long Go-style names (int32, float64, ...) are accepted as well.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return KindBool, nil
	case "i32", "int32":
		return KindInt32, nil
	case "u32", "uint32":
		return KindUint32, nil
	case "i64", "int64":
		return KindInt64, nil
	case "u64", "uint64":
		return KindUint64, nil
	case "f32", "float32", "float":
		return KindFloat32, nil
	case "f64", "float64", "double":
		return KindFloat64, nil
	case "string", "str":
		return KindString, nil
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// IsValid returns true for every kind except KindInvalid.
func (k Kind) IsValid() bool { return k > KindInvalid && k <= KindString }

// IsInteger returns true for the signed and unsigned integer kinds.
func (k Kind) IsInteger() bool { return k.IsSigned() || k.IsUnsigned() }

// IsSigned returns true for i32 and i64.
func (k Kind) IsSigned() bool { return k == KindInt32 || k == KindInt64 }

// IsUnsigned returns true for u32 and u64.
func (k Kind) IsUnsigned() bool { return k == KindUint32 || k == KindUint64 }

// IsFloat returns true for f32 and f64.
func (k Kind) IsFloat() bool { return k == KindFloat32 || k == KindFloat64 }

// IsNumeric returns true for integer and floating point kinds.
func (k Kind) IsNumeric() bool { return k.IsInteger() || k.IsFloat() }

// Bits returns the storage width of numeric kinds, 0 otherwise.
func (k Kind) Bits() int {
	switch k {
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt64, KindUint64, KindFloat64:
		return 64
	}
	return 0
}

// Primitive is the set of Go types a Value can hold.
type Primitive interface {
	bool | int32 | uint32 | int64 | uint64 | float32 | float64 | string
}

// KindOf returns the Kind corresponding to T.
func KindOf[T Primitive]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBool
	case int32:
		return KindInt32
	case uint32:
		return KindUint32
	case int64:
		return KindInt64
	case uint64:
		return KindUint64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case string:
		return KindString
	}
	return KindInvalid
}
