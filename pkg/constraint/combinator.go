package constraint

import (
	"fmt"

	"github.com/bpmctl/paramtree/pkg/value"
)

type andExpr struct {
	children []Expression
}

// And accepts a value if every child accepts it. An empty And accepts
// everything.
func And(children ...Expression) Expression {
	return &andExpr{children: append([]Expression(nil), children...)}
}

func (a *andExpr) Evaluate(v value.Value) bool { return accepts(a, v) }

// check is false if any child is false, otherwise unknown if any child is.
func (a *andExpr) check(e value.Value) truth {
	out := truthTrue
	for _, c := range a.children {
		switch checkElement(c, e) {
		case truthFalse:
			return truthFalse
		case truthUnknown:
			out = truthUnknown
		}
	}
	return out
}

func (a *andExpr) String() string { return "and(" + joinStrings(a.children) + ")" }

type orExpr struct {
	children []Expression
}

// Or accepts a value if at least one child accepts it. An empty Or rejects
// everything.
func Or(children ...Expression) Expression {
	return &orExpr{children: append([]Expression(nil), children...)}
}

func (o *orExpr) Evaluate(v value.Value) bool { return accepts(o, v) }

// check is true if any child is true, otherwise unknown if any child is.
func (o *orExpr) check(e value.Value) truth {
	out := truthFalse
	for _, c := range o.children {
		switch checkElement(c, e) {
		case truthTrue:
			return truthTrue
		case truthUnknown:
			out = truthUnknown
		}
	}
	return out
}

func (o *orExpr) String() string { return "or(" + joinStrings(o.children) + ")" }

type notExpr struct {
	child Expression
}

// Not inverts its single child element by element. A child that cannot
// decide still rejects.
func Not(children ...Expression) (Expression, error) {
	if len(children) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNotArity, len(children))
	}
	return &notExpr{child: children[0]}, nil
}

func (n *notExpr) Evaluate(v value.Value) bool { return accepts(n, v) }

func (n *notExpr) check(e value.Value) truth {
	switch checkElement(n.child, e) {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	}
	return truthUnknown
}

func (n *notExpr) String() string { return "not(" + n.child.String() + ")" }
