package catalog

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// StaticCatalog is an immutable catalog built once at startup.
type StaticCatalog struct {
	schemas map[string]*staticSchema
}

// NewStaticCatalog creates an empty static catalog.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		schemas: make(map[string]*staticSchema),
	}
}

// AddSchema adds a schema holding tables, keyed by table name.
// It must not be called once the catalog is being served.
func (c *StaticCatalog) AddSchema(name, comment string, tables map[string]Table) {
	c.schemas[name] = &staticSchema{
		name:    name,
		comment: comment,
		tables:  tables,
	}
}

// Schemas implements Catalog.
func (c *StaticCatalog) Schemas(ctx context.Context) ([]Schema, error) {
	result := make([]Schema, 0, len(c.schemas))
	for _, name := range slices.Sorted(maps.Keys(c.schemas)) {
		result = append(result, c.schemas[name])
	}
	return result, nil
}

// Schema implements Catalog.
func (c *StaticCatalog) Schema(ctx context.Context, name string) (Schema, error) {
	schema, ok := c.schemas[name]
	if !ok {
		return nil, nil
	}
	return schema, nil
}

type staticSchema struct {
	name    string
	comment string
	tables  map[string]Table
}

func (s *staticSchema) Name() string    { return s.name }
func (s *staticSchema) Comment() string { return s.comment }

func (s *staticSchema) Tables(ctx context.Context) ([]Table, error) {
	result := slices.Collect(maps.Values(s.tables))
	slices.SortFunc(result, func(a, b Table) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return result, nil
}

func (s *staticSchema) Table(ctx context.Context, name string) (Table, error) {
	table, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return table, nil
}

// StaticTable is a table backed by a fixed schema and a scan function.
type StaticTable struct {
	name     string
	comment  string
	schema   *arrow.Schema
	scanFunc ScanFunc
}

// NewStaticTable creates a static table.
func NewStaticTable(name, comment string, schema *arrow.Schema, scanFunc ScanFunc) *StaticTable {
	return &StaticTable{
		name:     name,
		comment:  comment,
		schema:   schema,
		scanFunc: scanFunc,
	}
}

// Name implements Table.
func (t *StaticTable) Name() string { return t.name }

// Comment implements Table.
func (t *StaticTable) Comment() string { return t.comment }

// ArrowSchema implements Table.
func (t *StaticTable) ArrowSchema() *arrow.Schema { return t.schema }

// Scan implements Table.
func (t *StaticTable) Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error) {
	return t.scanFunc(ctx, opts)
}
