package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatBool renders a bool the way it is accepted by ParseBool.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ParseBool accepts true/false, 1/0, on/off and yes/no, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a bool", ErrSyntax, s)
}

// Parse parses the textual form of a scalar of the given kind. Integers
// accept Go base prefixes (0x, 0o, 0b).
func Parse(kind Kind, s string) (Value, error) {
	t := strings.TrimSpace(s)
	switch kind {
	case KindBool:
		b, err := ParseBool(t)
		if err != nil {
			return Value{}, err
		}
		return Of(b), nil
	case KindInt32:
		n, err := strconv.ParseInt(t, 0, 32)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(int32(n)), nil
	case KindUint32:
		n, err := strconv.ParseUint(t, 0, 32)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(uint32(n)), nil
	case KindInt64:
		n, err := strconv.ParseInt(t, 0, 64)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(n), nil
	case KindUint64:
		n, err := strconv.ParseUint(t, 0, 64)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(n), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(t, 32)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(float32(f)), nil
	case KindFloat64:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Value{}, syntaxError(kind, s, err)
		}
		return Of(f), nil
	case KindString:
		return Of(s), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
}

func syntaxError(kind Kind, s string, err error) error {
	return fmt.Errorf("%w: %q as %s: %v", ErrSyntax, s, kind, err)
}

// ParseArray parses each element with Parse and returns an array value.
func ParseArray(kind Kind, elems []string) (Value, error) {
	out := ZeroArray(kind, len(elems))
	if !out.IsValid() {
		return Value{}, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	for i, s := range elems {
		e, err := Parse(kind, s)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		if out, err = out.Splice(i, e); err != nil {
			return Value{}, err
		}
	}
	return out, nil
}

// Strings returns the textual form of every element. A scalar yields one
// element.
func (v Value) Strings() []string {
	if !v.IsValid() {
		return nil
	}
	out := make([]string, 0, v.Size())
	for i := 0; i < v.Size(); i++ {
		e, _ := v.Index(i)
		out = append(out, formatScalar(e.data))
	}
	return out
}

func formatScalar(x any) string {
	switch d := x.(type) {
	case bool:
		return FormatBool(d)
	case int32:
		return strconv.FormatInt(int64(d), 10)
	case uint32:
		return strconv.FormatUint(uint64(d), 10)
	case int64:
		return strconv.FormatInt(d, 10)
	case uint64:
		return strconv.FormatUint(d, 10)
	case float32:
		return strconv.FormatFloat(float64(d), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(d, 'g', -1, 64)
	case string:
		return d
	}
	return ""
}

// Convert converts a numeric scalar to another numeric kind. It fails with
// ErrOutOfRange if the value does not fit and with ErrKindMismatch for
// non-numeric operands. Converting to the same kind returns v unchanged.
func Convert(v Value, kind Kind) (Value, error) {
	if v.kind == kind && !v.array {
		return v, nil
	}
	if v.array || !v.kind.IsNumeric() || !kind.IsNumeric() {
		return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrKindMismatch, describe(v), kind)
	}
	if kind.IsFloat() {
		f := toFloat(v)
		if kind == KindFloat32 {
			return Of(float32(f)), nil
		}
		return Of(f), nil
	}

	var neg bool
	var s int64
	var u uint64
	if v.kind.IsFloat() {
		f := toFloat(v)
		if f != math.Trunc(f) || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxUint64 {
			return Value{}, fmt.Errorf("%w: %v is not representable as %s", ErrOutOfRange, f, kind)
		}
		neg = f < 0
		if neg {
			s = int64(f)
		} else {
			u = uint64(f)
			s = int64(u)
		}
	} else {
		neg, s, u = splitInteger(v)
	}

	fail := fmt.Errorf("%w: %s is not representable as %s", ErrOutOfRange, v, kind)
	switch kind {
	case KindInt32:
		if (neg && s < math.MinInt32) || (!neg && u > math.MaxInt32) {
			return Value{}, fail
		}
		return Of(int32(s)), nil
	case KindInt64:
		if !neg && u > math.MaxInt64 {
			return Value{}, fail
		}
		return Of(s), nil
	case KindUint32:
		if neg || u > math.MaxUint32 {
			return Value{}, fail
		}
		return Of(uint32(u)), nil
	case KindUint64:
		if neg {
			return Value{}, fail
		}
		return Of(u), nil
	}
	return Value{}, fail
}
