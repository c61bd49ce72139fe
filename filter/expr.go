package filter

import "fmt"

// Class is the DuckDB expression_class of a node.
type Class string

const (
	ClassComparison  Class = "BOUND_COMPARISON"
	ClassConjunction Class = "BOUND_CONJUNCTION"
	ClassOperator    Class = "BOUND_OPERATOR"
	ClassBetween     Class = "BOUND_BETWEEN"
	ClassCast        Class = "BOUND_CAST"
	ClassColumnRef   Class = "BOUND_COLUMN_REF"
	ClassConstant    Class = "BOUND_CONSTANT"
)

// Kind is the DuckDB expression type, the "type" key of a node.
type Kind string

const (
	KindEqual          Kind = "COMPARE_EQUAL"
	KindNotEqual       Kind = "COMPARE_NOTEQUAL"
	KindLessThan       Kind = "COMPARE_LESSTHAN"
	KindGreaterThan    Kind = "COMPARE_GREATERTHAN"
	KindLessOrEqual    Kind = "COMPARE_LESSTHANOREQUALTO"
	KindGreaterOrEqual Kind = "COMPARE_GREATERTHANOREQUALTO"
	KindIn             Kind = "COMPARE_IN"
	KindNotIn          Kind = "COMPARE_NOT_IN"
	KindBetween        Kind = "COMPARE_BETWEEN"
	KindNotBetween     Kind = "COMPARE_NOT_BETWEEN"

	KindAnd Kind = "CONJUNCTION_AND"
	KindOr  Kind = "CONJUNCTION_OR"

	KindNot       Kind = "OPERATOR_NOT"
	KindIsNull    Kind = "OPERATOR_IS_NULL"
	KindIsNotNull Kind = "OPERATOR_IS_NOT_NULL"
)

// Expr is one node of a bound expression tree. The meaningful fields
// depend on Class:
//
//	comparison   Args = [left, right]
//	conjunction  Args = children
//	operator     Args = children; for IN the first one is the probed value
//	between      Args = [input, lower, upper] and the inclusive flags
//	cast         Args = [child], Type is the target type
//	column ref   Column is the binding index, Type the column type
//	constant     Value
//
// Nodes of any other class (functions, CASE, subqueries) keep only Class
// and Kind.
type Expr struct {
	Class Class
	Kind  Kind
	Args  []*Expr

	Column int
	Type   TypeID
	Value  Value

	LowerInclusive bool
	UpperInclusive bool
}

// Known reports whether the node's class is one the parser understands.
func (e *Expr) Known() bool {
	switch e.Class {
	case ClassComparison, ClassConjunction, ClassOperator, ClassBetween,
		ClassCast, ClassColumnRef, ClassConstant:
		return true
	}
	return false
}

// Pushdown is a parsed filter document. Filters are implicitly ANDed.
type Pushdown struct {
	Filters []*Expr
	// Columns names the scanned columns by binding index.
	Columns []string
}

// BindingError reports a column reference outside the binding list.
type BindingError struct {
	Index int
	Count int
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("column binding %d out of range (%d bound columns)", e.Index, e.Count)
}

// ColumnName resolves the column a column reference points at.
func (p *Pushdown) ColumnName(ref *Expr) (string, error) {
	if ref.Column < 0 || ref.Column >= len(p.Columns) {
		return "", &BindingError{Index: ref.Column, Count: len(p.Columns)}
	}
	return p.Columns[ref.Column], nil
}
