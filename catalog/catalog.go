// Package catalog defines the metadata tree served over Flight: a catalog
// holds schemas, a schema holds tables, a table scans into Arrow records.
//
// All implementations must be safe for concurrent use.
package catalog

import (
	"context"
)

// Catalog is the top-level metadata container.
type Catalog interface {
	// Schemas returns all schemas, ordered by name.
	Schemas(ctx context.Context) ([]Schema, error)

	// Schema returns the named schema.
	// Returns (nil, nil) if the schema does not exist.
	Schema(ctx context.Context, name string) (Schema, error)
}

// Schema is a named group of tables.
type Schema interface {
	Name() string
	Comment() string

	// Tables returns all tables, ordered by name.
	Tables(ctx context.Context) ([]Table, error)

	// Table returns the named table.
	// Returns (nil, nil) if the table does not exist.
	Table(ctx context.Context, name string) (Table, error)
}
