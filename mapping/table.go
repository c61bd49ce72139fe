package mapping

import "strings"

// Direction describes whether a column's value flows into the request,
// comes from the response, or both.
type Direction int

const (
	DirectionResponse Direction = iota
	DirectionRequest
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "REQUEST"
	case DirectionResponse:
		return "RESPONSE"
	case DirectionBoth:
		return "BOTH"
	}
	return "UNKNOWN"
}

// RootSegment is the path segment standing for a bare root array.
const RootSegment = "$"

// Column is one entry of a table's flat column catalog.
type Column struct {
	Name       string
	Type       ScalarType
	SourcePath []string
	Direction  Direction
}

// SourceName is the last element of the source path: the field name the
// remote API knows the column by.
func (c Column) SourceName() string {
	if len(c.SourcePath) == 0 {
		return c.Name
	}
	return c.SourcePath[len(c.SourcePath)-1]
}

// SourceKey is the key under which flattened rows carry the column's value.
func (c Column) SourceKey() string {
	return SourceKey(c.SourcePath)
}

// SourceKey joins a source path into a flattened row key. The root array
// segment is not part of the key.
func SourceKey(path []string) string {
	if len(path) > 0 && path[0] == RootSegment {
		path = path[1:]
	}
	return strings.Join(path, ".")
}

// Paging configures offset pagination. PageSize <= 0 disables paging.
type Paging struct {
	StartPage int
	PageSize  int
}

// Table is the flat relational view of one API resource.
// A Table is immutable once built and safe for concurrent use.
type Table struct {
	Name             string
	Columns          []Column
	DeepestArrayPath []string
	Paging           Paging

	byName map[string]int
}

// NewTable builds a table and its name index.
func NewTable(name string, columns []Column, path []string, paging Paging) *Table {
	t := &Table{
		Name:             name,
		Columns:          columns,
		DeepestArrayPath: path,
		Paging:           paging,
		byName:           make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.byName[c.Name] = i
	}
	return t
}

// Column returns the column with the given output name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	i, ok := t.byName[name]
	if !ok {
		return -1
	}
	return i
}

// ColumnNames returns output names in catalog order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
