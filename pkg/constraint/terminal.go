package constraint

import "github.com/bpmctl/paramtree/pkg/value"

type rangeExpr struct {
	min, max Bound
}

// Range accepts values v with min <= v <= max.
func Range(min, max Bound) Expression {
	return &rangeExpr{min: min, max: max}
}

func (r *rangeExpr) Evaluate(v value.Value) bool { return accepts(r, v) }

func (r *rangeExpr) check(e value.Value) truth {
	lo, ok := order(e, r.min)
	if !ok {
		return truthUnknown
	}
	hi, ok := order(e, r.max)
	if !ok {
		return truthUnknown
	}
	return truthOf(lo >= 0 && hi <= 0)
}

func (r *rangeExpr) String() string {
	return "range(" + r.min.String() + ", " + r.max.String() + ")"
}

type setExpr struct {
	members []Bound
}

// Set accepts values equal to one of members.
func Set(members ...Bound) Expression {
	return &setExpr{members: append([]Bound(nil), members...)}
}

func (s *setExpr) Evaluate(v value.Value) bool { return accepts(s, v) }

// check is true on the first matching member. A member that cannot be
// resolved or compared makes a miss unknown.
func (s *setExpr) check(e value.Value) truth {
	out := truthFalse
	for _, m := range s.members {
		eq, ok := equal(e, m)
		switch {
		case !ok:
			out = truthUnknown
		case eq:
			return truthTrue
		}
	}
	return out
}

func (s *setExpr) String() string {
	return "set{" + joinStrings(s.members) + "}"
}

type cmpExpr struct {
	op    string
	bound Bound
	want  int
}

// Gt accepts values strictly greater than b.
func Gt(b Bound) Expression {
	return &cmpExpr{op: "gt", bound: b, want: 1}
}

// Lt accepts values strictly less than b.
func Lt(b Bound) Expression {
	return &cmpExpr{op: "lt", bound: b, want: -1}
}

func (c *cmpExpr) Evaluate(v value.Value) bool { return accepts(c, v) }

func (c *cmpExpr) check(e value.Value) truth {
	r, ok := order(e, c.bound)
	if !ok {
		return truthUnknown
	}
	return truthOf(r == c.want)
}

func (c *cmpExpr) String() string {
	return c.op + "(" + c.bound.String() + ")"
}
