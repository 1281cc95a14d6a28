package value

import (
	"cmp"
	"fmt"
)

// Compare orders two scalar values. Numeric kinds compare numerically across
// signedness and width; if either side is a float both are compared as
// float64. Strings compare lexically. Bools only compare for equality: equal
// bools return 0, unequal bools return ErrIncomparable. Any other pairing,
// and any array operand, returns ErrIncomparable.
func Compare(a, b Value) (int, error) {
	if a.array || b.array || !a.IsValid() || !b.IsValid() {
		return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, describe(a), describe(b))
	}
	switch {
	case a.kind.IsNumeric() && b.kind.IsNumeric():
		if a.kind.IsFloat() || b.kind.IsFloat() {
			return cmp.Compare(toFloat(a), toFloat(b)), nil
		}
		return compareIntegers(a, b), nil
	case a.kind == KindString && b.kind == KindString:
		return cmp.Compare(a.data.(string), b.data.(string)), nil
	case a.kind == KindBool && b.kind == KindBool:
		if a.data.(bool) == b.data.(bool) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: bool values only compare for equality", ErrIncomparable)
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, describe(a), describe(b))
}

func describe(v Value) string {
	if v.array {
		return v.kind.String() + " array"
	}
	return v.kind.String()
}

// toFloat converts a numeric scalar to float64.
func toFloat(v Value) float64 {
	switch d := v.data.(type) {
	case int32:
		return float64(d)
	case uint32:
		return float64(d)
	case int64:
		return float64(d)
	case uint64:
		return float64(d)
	case float32:
		return float64(d)
	case float64:
		return d
	}
	return 0
}

// splitInteger returns the sign and magnitude of an integer scalar.
func splitInteger(v Value) (neg bool, signed int64, unsigned uint64) {
	switch d := v.data.(type) {
	case int32:
		return d < 0, int64(d), uint64(int64(d))
	case int64:
		return d < 0, d, uint64(d)
	case uint32:
		return false, int64(d), uint64(d)
	case uint64:
		return false, int64(d), d
	}
	return false, 0, 0
}

func compareIntegers(a, b Value) int {
	an, as, au := splitInteger(a)
	bn, bs, bu := splitInteger(b)
	switch {
	case an && bn:
		return cmp.Compare(as, bs)
	case an:
		return -1
	case bn:
		return 1
	}
	return cmp.Compare(au, bu)
}
