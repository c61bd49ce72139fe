package restport

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/restport/catalog"
)

// SimpleTableDef defines a table with a fixed Arrow schema and a scan
// function, for tables that are not backed by a network API.
type SimpleTableDef struct {
	// Name is the table name.
	// REQUIRED: MUST be non-empty and unique within schema.
	Name string

	Comment string

	// Schema is the Arrow schema describing table columns.
	// REQUIRED: MUST NOT be nil.
	Schema *arrow.Schema

	// ScanFunc provides table data as RecordReader.
	// REQUIRED: MUST NOT be nil.
	ScanFunc catalog.ScanFunc
}

// CatalogBuilder builds a static catalog.
// Not thread-safe; use only during initialization.
type CatalogBuilder struct {
	schemas []*schemaBuilder
	built   bool
}

// NewCatalogBuilder creates an empty catalog builder.
//
//	cat, err := restport.NewCatalogBuilder().
//	    Schema("weather").
//	        Comment("Weather service").
//	        Table(stations).
//	        Table(observations).
//	    Build()
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{}
}

// Schema starts defining a new schema.
func (cb *CatalogBuilder) Schema(name string) *SchemaBuilder {
	sb := &schemaBuilder{name: name, catalogBuilder: cb}
	cb.schemas = append(cb.schemas, sb)
	return &SchemaBuilder{builder: sb}
}

// Build validates the definitions and returns the immutable catalog.
// It can only be called once.
func (cb *CatalogBuilder) Build() (catalog.Catalog, error) {
	if cb.built {
		return nil, fmt.Errorf("catalog already built")
	}

	seen := make(map[string]bool, len(cb.schemas))
	for _, sb := range cb.schemas {
		if sb.name == "" {
			return nil, fmt.Errorf("schema name cannot be empty")
		}
		if seen[sb.name] {
			return nil, fmt.Errorf("duplicate schema name: %s", sb.name)
		}
		seen[sb.name] = true

		if sb.err != nil {
			return nil, fmt.Errorf("schema %s: %w", sb.name, sb.err)
		}
		names := make(map[string]bool, len(sb.tables))
		for _, table := range sb.tables {
			if table.Name() == "" {
				return nil, fmt.Errorf("table name cannot be empty in schema %s", sb.name)
			}
			if names[table.Name()] {
				return nil, fmt.Errorf("duplicate table name %s in schema %s", table.Name(), sb.name)
			}
			names[table.Name()] = true
			if table.ArrowSchema() == nil {
				return nil, fmt.Errorf("table %s.%s has nil schema", sb.name, table.Name())
			}
		}
	}

	cb.built = true

	cat := catalog.NewStaticCatalog()
	for _, sb := range cb.schemas {
		tables := make(map[string]catalog.Table, len(sb.tables))
		for _, table := range sb.tables {
			tables[table.Name()] = table
		}
		cat.AddSchema(sb.name, sb.comment, tables)
	}
	return cat, nil
}

// SchemaBuilder builds one schema of a catalog.
type SchemaBuilder struct {
	builder *schemaBuilder
}

type schemaBuilder struct {
	name           string
	comment        string
	tables         []catalog.Table
	err            error
	catalogBuilder *CatalogBuilder
}

// Comment sets the schema documentation.
func (sb *SchemaBuilder) Comment(comment string) *SchemaBuilder {
	sb.builder.comment = comment
	return sb
}

// Table adds a table, typically one returned by NewTable.
func (sb *SchemaBuilder) Table(table catalog.Table) *SchemaBuilder {
	if table == nil {
		sb.builder.fail(fmt.Errorf("nil table"))
		return sb
	}
	sb.builder.tables = append(sb.builder.tables, table)
	return sb
}

// SimpleTable adds a table with a fixed schema and scan function.
func (sb *SchemaBuilder) SimpleTable(def SimpleTableDef) *SchemaBuilder {
	if def.ScanFunc == nil {
		sb.builder.fail(fmt.Errorf("table %s has nil scan function", def.Name))
		return sb
	}
	return sb.Table(catalog.NewStaticTable(def.Name, def.Comment, def.Schema, def.ScanFunc))
}

func (b *schemaBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Schema starts the next schema of the same catalog.
func (sb *SchemaBuilder) Schema(name string) *SchemaBuilder {
	return sb.builder.catalogBuilder.Schema(name)
}

// Build finalizes the catalog.
func (sb *SchemaBuilder) Build() (catalog.Catalog, error) {
	return sb.builder.catalogBuilder.Build()
}
