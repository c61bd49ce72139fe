package restport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/fetch"
	"github.com/hugr-lab/restport/filter"
	"github.com/hugr-lab/restport/mapping"
	"github.com/hugr-lab/restport/pushdown"
	"github.com/hugr-lab/restport/rowset"
)

// TableDef declares a table backed by a paginated network API.
type TableDef struct {
	// Name is the table name; it defaults to Description.Name.
	Name    string
	Comment string

	// Description is the shape of one response page plus the request-only
	// fields. REQUIRED.
	Description *mapping.Description

	// Paging overrides Description.Paging when its PageSize is set.
	Paging mapping.Paging

	// Addresses are tried in order until one answers. REQUIRED.
	Addresses []string

	// ContentType overrides the response Content-Type when set.
	ContentType string

	// Renderer builds each page request. REQUIRED.
	Renderer fetch.Renderer

	// BatchSize is the default number of rows per record batch.
	BatchSize int
}

// Deps are the process-wide services a table uses.
type Deps struct {
	// Transport executes page requests. REQUIRED.
	Transport fetch.Transport
	Logger    *slog.Logger
	Metrics   *fetch.Metrics
	Allocator memory.Allocator
}

// Table is a catalog table served from a network API. It is immutable and
// safe for concurrent scans.
type Table struct {
	name      string
	comment   string
	table     *mapping.Table
	schema    *arrow.Schema
	loop      *fetch.Loop
	allocator memory.Allocator
	batchSize int
	logger    *slog.Logger
}

var _ catalog.Table = (*Table)(nil)

// NewTable discovers the column catalog of def and builds its schema.
// Description errors are reported here, before any request is sent.
func NewTable(def TableDef, deps Deps) (*Table, error) {
	if def.Description == nil {
		return nil, fmt.Errorf("%w: table %q has no description", ErrInvalidConfig, def.Name)
	}
	if def.Renderer == nil {
		return nil, fmt.Errorf("%w: table %q has no renderer", ErrInvalidConfig, def.Name)
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("%w: table %q has no transport", ErrInvalidConfig, def.Name)
	}
	if len(def.Addresses) == 0 {
		return nil, fmt.Errorf("%w: table %q: %w", ErrInvalidConfig, def.Name, fetch.ErrNoAddress)
	}

	desc := *def.Description
	if def.Name != "" {
		desc.Name = def.Name
	}
	if def.Paging.PageSize > 0 {
		desc.Paging = def.Paging
	}
	table, err := mapping.Discover(&desc)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", desc.Name, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allocator := deps.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	logger.Debug("Table discovered",
		"table", table.Name,
		"columns", len(table.Columns),
		"row_path", table.DeepestArrayPath,
		"page_size", table.Paging.PageSize,
	)

	return &Table{
		name:    table.Name,
		comment: def.Comment,
		table:   table,
		schema:  rowset.Schema(table),
		loop: &fetch.Loop{
			Table:       table,
			Addresses:   def.Addresses,
			Renderer:    def.Renderer,
			Transport:   deps.Transport,
			ContentType: def.ContentType,
			Metrics:     deps.Metrics,
			Logger:      logger,
		},
		allocator: allocator,
		batchSize: def.BatchSize,
		logger:    logger,
	}, nil
}

func (t *Table) Name() string { return t.name }

func (t *Table) Comment() string { return t.comment }

// ArrowSchema returns one nullable field per discovered column.
func (t *Table) ArrowSchema() *arrow.Schema { return t.schema }

// Mapping returns the discovered column catalog.
func (t *Table) Mapping() *mapping.Table { return t.table }

// Scan validates the pushed-down filter against the catalog and returns a
// reader that fetches pages as batches are consumed. A filter that cannot
// be honoured fails here, before any request is sent.
func (t *Table) Scan(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
	if opts == nil {
		opts = &catalog.ScanOptions{}
	}

	groups, err := t.criteria(opts.Filter)
	if err != nil {
		return nil, err
	}
	columns, err := t.projection(opts.Columns)
	if err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = t.batchSize
	}

	t.logger.Debug("Scan",
		"table", t.name,
		"columns", len(columns),
		"dnf_groups", len(groups.DNF),
		"cnf_groups", len(groups.CNF),
		"limit", opts.Limit,
	)

	rows := t.loop.Rows(ctx, fetch.Query{
		Columns: columns,
		Groups:  groups,
		Budget:  opts.Limit,
	})
	return rowset.NewReader(t.allocator, t.table, rows, batchSize), nil
}

// criteria turns the DuckDB filter JSON into request criteria.
func (t *Table) criteria(data []byte) (*pushdown.Groups, error) {
	if len(data) == 0 {
		return pushdown.Convert(filter.Normal{}, t.table)
	}
	fp, err := filter.Parse(data)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "table %s: invalid filter: %v", t.name, err)
	}
	return pushdown.Convert(filter.Normalize(fp), t.table)
}

// projection checks the requested column names exist.
func (t *Table) projection(columns []string) ([]string, error) {
	for _, name := range columns {
		if t.table.ColumnIndex(name) < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "table %s has no column %q", t.name, name)
		}
	}
	return columns, nil
}
