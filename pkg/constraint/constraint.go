// Package constraint implements the validation expressions attached to
// parameter nodes.
//
// An expression is a tree of terminal predicates (Range, Set, Gt, Lt) and
// combinators (And, Or, Not). It is evaluated against one candidate value
// before a write is committed. Terminal bounds are resolved at evaluation
// time, so a bound may follow the live value of another parameter:
//
//	gain := constraint.Range(constraint.Val[int32](-80), constraint.Val[int32](0))
//	below := constraint.Lt(thresholdNode)
//
// Evaluation fails closed: a candidate that cannot be compared with a bound,
// or a bound that cannot be resolved, is rejected, also underneath Not.
package constraint

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bpmctl/paramtree/pkg/value"
)

// ErrNotArity is returned by Not unless it is given exactly one child.
var ErrNotArity = errors.New("not requires exactly one child")

// Expression validates a candidate value.
type Expression interface {
	// Evaluate reports whether v is acceptable. Array candidates pass only
	// if every element passes.
	Evaluate(v value.Value) bool

	// String returns the textual form of the expression.
	String() string
}

// Bound supplies a terminal's comparison operand.
type Bound interface {
	Resolve() (value.Value, error)
	String() string
}

// Const is a fixed bound.
type Const value.Value

// Resolve returns the constant.
func (c Const) Resolve() (value.Value, error) { return value.Value(c), nil }

func (c Const) String() string {
	v := value.Value(c)
	if v.Kind() == value.KindString && !v.IsArray() {
		return strconv.Quote(v.String())
	}
	return v.String()
}

// Val returns a constant bound holding v.
func Val[T value.Primitive](v T) Bound {
	return Const(value.Of(v))
}

// truth is the outcome of checking one element. unknown means a bound
// could not be resolved or the element cannot be compared with it; it
// survives negation, so only a definite true ever accepts.
type truth uint8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// elementChecker is implemented by every expression in this package.
type elementChecker interface {
	check(e value.Value) truth
}

// checkElement evaluates x against one scalar element. Expressions from
// outside the package have no unknown state.
func checkElement(x Expression, e value.Value) truth {
	if c, ok := x.(elementChecker); ok {
		return c.check(e)
	}
	return truthOf(x.Evaluate(e))
}

// accepts reports whether x is definitely true for a scalar, or for every
// element of an array.
func accepts(x Expression, v value.Value) bool {
	if !v.IsValid() {
		return false
	}
	if !v.IsArray() {
		return checkElement(x, v) == truthTrue
	}
	for i := 0; i < v.Size(); i++ {
		e, err := v.Index(i)
		if err != nil || checkElement(x, e) != truthTrue {
			return false
		}
	}
	return true
}

// order resolves b and orders e against it. Bools have no order.
func order(e value.Value, b Bound) (c int, ok bool) {
	if e.Kind() == value.KindBool {
		return 0, false
	}
	bv, err := b.Resolve()
	if err != nil {
		return 0, false
	}
	c, err = value.Compare(e, bv)
	return c, err == nil
}

// equal resolves b and tests e for equality. ok is false if b cannot be
// resolved or the kinds cannot be compared.
func equal(e value.Value, b Bound) (eq, ok bool) {
	bv, err := b.Resolve()
	if err != nil {
		return false, false
	}
	if e.Kind() == value.KindBool && bv.Kind() == value.KindBool && !bv.IsArray() {
		return value.Equal(e, bv), true
	}
	c, err := value.Compare(e, bv)
	return c == 0, err == nil
}

func joinStrings[T interface{ String() string }](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ", ")
}
