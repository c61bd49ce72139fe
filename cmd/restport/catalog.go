package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/restport"
	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/config"
	"github.com/hugr-lab/restport/render"
)

// listingTable is the name of the table describing the served tables.
const listingTable = "tables"

var listingSchema = arrow.NewSchema([]arrow.Field{
	{Name: "schema_name", Type: arrow.BinaryTypes.String},
	{Name: "table_name", Type: arrow.BinaryTypes.String},
	{Name: "comment", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "row_path", Type: arrow.BinaryTypes.String},
	{Name: "columns", Type: arrow.PrimitiveTypes.Int32},
	{Name: "page_size", Type: arrow.PrimitiveTypes.Int32},
	{Name: "addresses", Type: arrow.BinaryTypes.String},
}, nil)

type served struct {
	schema    string
	table     *restport.Table
	addresses []string
}

// buildCatalog creates every configured table and groups them by schema.
// Unless disabled, the listing schema gets a table describing them.
func buildCatalog(cfg *config.Config, deps restport.Deps) (catalog.Catalog, error) {
	tables := map[string][]*restport.Table{}
	var all []served
	for _, tc := range cfg.Tables {
		renderer, err := render.New(tc.Request.Spec())
		if err != nil {
			return nil, fmt.Errorf("table %s.%s: %w", tc.Schema, tc.Name, err)
		}
		t, err := restport.NewTable(restport.TableDef{
			Name:        tc.Name,
			Comment:     tc.Comment,
			Description: tc.Description,
			Addresses:   tc.Addresses,
			ContentType: tc.ContentType,
			Renderer:    renderer,
			BatchSize:   tc.BatchSize,
		}, deps)
		if err != nil {
			return nil, fmt.Errorf("table %s.%s: %w", tc.Schema, tc.Name, err)
		}
		tables[tc.Schema] = append(tables[tc.Schema], t)
		all = append(all, served{schema: tc.Schema, table: t, addresses: tc.Addresses})
	}

	builder := restport.NewCatalogBuilder()
	for _, name := range cfg.Schemas() {
		sb := builder.Schema(name)
		for _, t := range tables[name] {
			sb.Table(t)
		}
	}
	if name := cfg.Server.ListingSchema; name != config.ListingDisabled {
		builder.Schema(name).
			Comment("Tables served by restport").
			SimpleTable(restport.SimpleTableDef{
				Name:     listingTable,
				Comment:  "One row per served table",
				Schema:   listingSchema,
				ScanFunc: listTables(all, deps.Allocator),
			})
	}
	return builder.Build()
}

// listTables returns a scan producing one row per table in a single batch.
func listTables(tables []served, mem memory.Allocator) catalog.ScanFunc {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return func(ctx context.Context, _ *catalog.ScanOptions) (array.RecordReader, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := array.NewRecordBuilder(mem, listingSchema)
		defer b.Release()

		for _, s := range tables {
			m := s.table.Mapping()
			b.Field(0).(*array.StringBuilder).Append(s.schema)
			b.Field(1).(*array.StringBuilder).Append(s.table.Name())
			if c := s.table.Comment(); c != "" {
				b.Field(2).(*array.StringBuilder).Append(c)
			} else {
				b.Field(2).AppendNull()
			}
			b.Field(3).(*array.StringBuilder).Append(strings.Join(m.DeepestArrayPath, "."))
			b.Field(4).(*array.Int32Builder).Append(int32(len(m.Columns)))
			b.Field(5).(*array.Int32Builder).Append(int32(m.Paging.PageSize))
			b.Field(6).(*array.StringBuilder).Append(strings.Join(s.addresses, ","))
		}

		rec := b.NewRecordBatch()
		defer rec.Release()
		return array.NewRecordReader(listingSchema, []arrow.RecordBatch{rec})
	}
}
