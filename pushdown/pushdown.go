// Package pushdown turns a normalised host condition into filter criteria
// expressed in the remote API's field names.
package pushdown

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/hugr-lab/restport/filter"
	"github.com/hugr-lab/restport/mapping"
)

// Criterion is one filter condition on a remote field.
type Criterion struct {
	// Field is the source name the remote API knows the field by.
	Field string
	// Column is the output column the condition was written against.
	Column string
	Op     filter.Op
	Value  any
}

// Groups holds the translated condition in both normal forms plus the
// values known from equality conditions.
type Groups struct {
	DNF [][]Criterion
	CNF [][]Criterion

	// Substitutions maps the source key of a REQUEST column to the value
	// its "=" condition fixed. The remote response never carries these
	// columns, so the value is written into every row.
	Substitutions map[string]any

	// Params maps the source name of a REQUEST or BOTH column to the value
	// of its "=" condition, for APIs taking plain named parameters.
	Params map[string]any
}

// Empty reports whether no criterion survived translation.
func (g *Groups) Empty() bool {
	return g == nil || (len(g.DNF) == 0 && len(g.CNF) == 0)
}

// ValidationError reports a condition on a REQUEST column the remote API
// cannot honour: an operator other than "=", or several "=" values.
type ValidationError struct {
	Column string
	Field  string
	Op     filter.Op
	// Values holds the distinct "=" values when more than one was given.
	Values []any
}

func (e *ValidationError) Error() string {
	if len(e.Values) > 1 {
		return fmt.Sprintf("column %q (field %q) is request-only and takes a single \"=\" value, got %v: "+
			"query one value at a time", e.Column, e.Field, e.Values)
	}
	return fmt.Sprintf("column %q (field %q) is request-only and supports only \"=\", got %q: "+
		"compare with \"=\" or declare the field in the response shape", e.Column, e.Field, e.Op)
}

// Convert translates a normalised condition against table.
//
// Literals naming columns the table does not have are dropped, as are
// groups left without literals. The first "=" value seen for a column
// fills Params. A REQUEST column is substituted only when a single-literal
// CNF clause fixes its value; distinct "=" values on one REQUEST column
// are rejected.
func Convert(cond filter.Normal, table *mapping.Table) (*Groups, error) {
	c := &converter{
		table: table,
		groups: &Groups{
			Substitutions: map[string]any{},
			Params:        map[string]any{},
		},
		requested: map[string][]any{},
	}
	g := c.groups
	var err error
	if g.DNF, err = c.convert(cond.DNF); err != nil {
		return nil, err
	}
	if g.CNF, err = c.convert(cond.CNF); err != nil {
		return nil, err
	}
	if err := c.checkRequested(); err != nil {
		return nil, err
	}
	c.substitute(cond.CNF)
	return g, nil
}

type converter struct {
	table  *mapping.Table
	groups *Groups
	// requested collects the distinct "=" values per REQUEST column.
	requested map[string][]any
}

func (c *converter) convert(groups [][]filter.Literal) ([][]Criterion, error) {
	var out [][]Criterion
	for _, group := range groups {
		var crit []Criterion
		for _, l := range group {
			col, ok := c.table.Column(l.Column)
			if !ok {
				continue
			}
			if err := c.observe(col, l); err != nil {
				return nil, err
			}
			crit = append(crit, Criterion{
				Field:  col.SourceName(),
				Column: col.Name,
				Op:     l.Op,
				Value:  l.Value,
			})
		}
		if len(crit) > 0 {
			out = append(out, crit)
		}
	}
	return out, nil
}

// observe validates a literal against its column's direction and records
// equality values.
func (c *converter) observe(col mapping.Column, l filter.Literal) error {
	if l.Op != filter.OpEq {
		if col.Direction == mapping.DirectionRequest {
			return &ValidationError{Column: col.Name, Field: col.SourceName(), Op: l.Op}
		}
		return nil
	}
	switch col.Direction {
	case mapping.DirectionRequest:
		seen := c.requested[col.Name]
		if !slices.ContainsFunc(seen, func(v any) bool { return sameValue(v, l.Value) }) {
			c.requested[col.Name] = append(seen, l.Value)
		}
		fallthrough
	case mapping.DirectionBoth:
		if _, ok := c.groups.Params[col.SourceName()]; !ok {
			c.groups.Params[col.SourceName()] = l.Value
		}
	}
	return nil
}

func (c *converter) checkRequested() error {
	for _, name := range slices.Sorted(maps.Keys(c.requested)) {
		if values := c.requested[name]; len(values) > 1 {
			col, _ := c.table.Column(name)
			return &ValidationError{Column: name, Field: col.SourceName(), Op: filter.OpEq, Values: values}
		}
	}
	return nil
}

// substitute records the REQUEST columns whose value every row shares: those
// fixed by a CNF clause of a single "=" literal.
func (c *converter) substitute(cnf [][]filter.Literal) {
	for _, clause := range cnf {
		if len(clause) != 1 || clause[0].Op != filter.OpEq {
			continue
		}
		col, ok := c.table.Column(clause[0].Column)
		if !ok || col.Direction != mapping.DirectionRequest {
			continue
		}
		c.groups.Substitutions[col.SourceKey()] = clause[0].Value
	}
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
