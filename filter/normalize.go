package filter

// Op is a comparison operator a REST source can be asked to evaluate.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpGt Op = ">"
	OpLe Op = "<="
	OpGe Op = ">="
)

// Negate returns the operator matching NOT (a op b).
func (o Op) Negate() Op {
	switch o {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpGe:
		return OpLt
	case OpGt:
		return OpLe
	case OpLe:
		return OpGt
	}
	return o
}

// flip returns the operator for the mirrored comparison (b op' a).
func (o Op) flip() Op {
	switch o {
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	}
	return o
}

var compareOps = map[Kind]Op{
	KindEqual:          OpEq,
	KindNotEqual:       OpNe,
	KindLessThan:       OpLt,
	KindGreaterThan:    OpGt,
	KindLessOrEqual:    OpLe,
	KindGreaterOrEqual: OpGe,
}

// Literal is one atomic condition: column op value.
type Literal struct {
	Column string
	Op     Op
	Value  any
}

// Normal is a filter decomposed into both normal forms.
// DNF is an OR of AND-groups, CNF an AND of OR-groups; both describe the
// same condition. A zero Normal means nothing could be pushed down.
type Normal struct {
	DNF [][]Literal
	CNF [][]Literal
}

// Empty reports whether no condition was pushed down.
func (n Normal) Empty() bool {
	return len(n.DNF) == 0 && len(n.CNF) == 0
}

// MaxGroups bounds the number of groups either normal form may expand to.
// Larger conditions are not pushed down at all.
const MaxGroups = 64

// Normalize decomposes the AND of all filters into DNF and CNF.
//
// Parts DuckDB sends that cannot be expressed as literals are dropped so
// that the pushed condition is never narrower than the original: an
// unsupported conjunct of an AND is removed, an OR with any unsupported
// disjunct is removed entirely. DuckDB re-applies the full filter to the
// returned rows.
func Normalize(p *Pushdown) Normal {
	if p == nil || len(p.Filters) == 0 {
		return Normal{}
	}
	root, ok := p.junction(p.Filters, true, false)
	if !ok {
		return Normal{}
	}
	dnf, ok := expand(root, true)
	if !ok {
		return Normal{}
	}
	cnf, ok := expand(root, false)
	if !ok {
		return Normal{}
	}
	return Normal{DNF: dnf, CNF: cnf}
}

type formulaKind int

const (
	formulaLiteral formulaKind = iota
	formulaAnd
	formulaOr
)

type formula struct {
	kind     formulaKind
	lit      Literal
	children []formula
}

func and(children []formula) formula { return formula{kind: formulaAnd, children: children} }
func or(children []formula) formula  { return formula{kind: formulaOr, children: children} }
func lit(l Literal) formula          { return formula{kind: formulaLiteral, lit: l} }

// formula converts an expression, pushing negation down to the literals.
func (p *Pushdown) formula(e *Expr, negate bool) (formula, bool) {
	switch e.Class {
	case ClassComparison:
		op, ok := compareOps[e.Kind]
		if !ok || len(e.Args) != 2 {
			return formula{}, false
		}
		col, val, flipped, ok := p.operands(e.Args[0], e.Args[1])
		if !ok {
			return formula{}, false
		}
		if flipped {
			op = op.flip()
		}
		if negate {
			op = op.Negate()
		}
		return lit(Literal{Column: col, Op: op, Value: val}), true

	case ClassConjunction:
		if e.Kind != KindAnd && e.Kind != KindOr {
			return formula{}, false
		}
		return p.junction(e.Args, (e.Kind == KindAnd) != negate, negate)

	case ClassOperator:
		switch e.Kind {
		case KindNot:
			if len(e.Args) != 1 {
				return formula{}, false
			}
			return p.formula(e.Args[0], !negate)
		case KindIn:
			return p.in(e.Args, negate)
		case KindNotIn:
			return p.in(e.Args, !negate)
		}

	case ClassBetween:
		if len(e.Args) != 3 {
			return formula{}, false
		}
		if e.Kind == KindNotBetween {
			negate = !negate
		}
		return p.between(e, negate)
	}
	return formula{}, false
}

// junction builds an AND (isAnd) or OR over children, applying the
// drop rules for unsupported parts.
func (p *Pushdown) junction(children []*Expr, isAnd, negate bool) (formula, bool) {
	out := make([]formula, 0, len(children))
	for _, c := range children {
		f, ok := p.formula(c, negate)
		if !ok {
			if isAnd {
				continue
			}
			return formula{}, false
		}
		out = append(out, f)
	}
	switch len(out) {
	case 0:
		return formula{}, false
	case 1:
		return out[0], true
	}
	if isAnd {
		return and(out), true
	}
	return or(out), true
}

// in expands col IN (a, b, ...) into an OR of equalities, or under
// negation an AND of inequalities.
func (p *Pushdown) in(args []*Expr, negate bool) (formula, bool) {
	if len(args) < 2 {
		return formula{}, false
	}
	col, ok := p.column(args[0])
	if !ok {
		return formula{}, false
	}
	op := OpEq
	if negate {
		op = OpNe
	}
	out := make([]formula, 0, len(args)-1)
	for _, a := range args[1:] {
		v, ok := constant(a)
		if !ok {
			return formula{}, false
		}
		out = append(out, lit(Literal{Column: col, Op: op, Value: v}))
	}
	if len(out) == 1 {
		return out[0], true
	}
	if negate {
		return and(out), true
	}
	return or(out), true
}

func (p *Pushdown) between(e *Expr, negate bool) (formula, bool) {
	col, ok := p.column(e.Args[0])
	if !ok {
		return formula{}, false
	}
	lower, ok := constant(e.Args[1])
	if !ok {
		return formula{}, false
	}
	upper, ok := constant(e.Args[2])
	if !ok {
		return formula{}, false
	}
	lo, hi := OpGe, OpLe
	if !e.LowerInclusive {
		lo = OpGt
	}
	if !e.UpperInclusive {
		hi = OpLt
	}
	if negate {
		return or([]formula{
			lit(Literal{Column: col, Op: lo.Negate(), Value: lower}),
			lit(Literal{Column: col, Op: hi.Negate(), Value: upper}),
		}), true
	}
	return and([]formula{
		lit(Literal{Column: col, Op: lo, Value: lower}),
		lit(Literal{Column: col, Op: hi, Value: upper}),
	}), true
}

// operands accepts column-op-constant and constant-op-column.
func (p *Pushdown) operands(left, right *Expr) (string, any, bool, bool) {
	if col, ok := p.column(left); ok {
		if v, ok := constant(right); ok {
			return col, v, false, true
		}
		return "", nil, false, false
	}
	if col, ok := p.column(right); ok {
		if v, ok := constant(left); ok {
			return col, v, true, true
		}
	}
	return "", nil, false, false
}

// column resolves a bare column reference. A cast column is not accepted:
// the remote API would compare the uncast value.
func (p *Pushdown) column(e *Expr) (string, bool) {
	if e.Class != ClassColumnRef {
		return "", false
	}
	name, err := p.ColumnName(e)
	return name, err == nil
}

// constant unwraps casts around a non-null constant.
func constant(e *Expr) (any, bool) {
	for e.Class == ClassCast && len(e.Args) == 1 {
		e = e.Args[0]
	}
	if e.Class != ClassConstant || e.Value.Null {
		return nil, false
	}
	return e.Value.Data, true
}

// expand computes DNF (dnf=true) or CNF from a formula. In DNF an AND is a
// cross product and an OR a concatenation; CNF is the dual.
func expand(f formula, dnf bool) ([][]Literal, bool) {
	switch f.kind {
	case formulaLiteral:
		return [][]Literal{{f.lit}}, true
	}

	product := (f.kind == formulaAnd) == dnf
	var acc [][]Literal
	for i, c := range f.children {
		groups, ok := expand(c, dnf)
		if !ok {
			return nil, false
		}
		switch {
		case i == 0:
			acc = groups
		case product:
			if len(acc)*len(groups) > MaxGroups {
				return nil, false
			}
			next := make([][]Literal, 0, len(acc)*len(groups))
			for _, a := range acc {
				for _, g := range groups {
					merged := make([]Literal, 0, len(a)+len(g))
					merged = append(merged, a...)
					merged = append(merged, g...)
					next = append(next, merged)
				}
			}
			acc = next
		default:
			acc = append(acc, groups...)
		}
		if len(acc) > MaxGroups {
			return nil, false
		}
	}
	return acc, true
}
