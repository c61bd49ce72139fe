package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// ScanOptions carries what the host engine pushed down into a scan.
type ScanOptions struct {
	// Columns are the projected column names. Nil/empty means all columns.
	Columns []string

	// Filter is the DuckDB filter pushdown JSON document.
	// Nil means no filtering.
	Filter []byte

	// Limit is the maximum number of rows to return.
	// If 0 or negative, no limit.
	Limit int64

	// BatchSize is a hint for the number of rows per record batch.
	// If 0, the implementation chooses.
	BatchSize int
}

// ScanFunc produces the rows of a table.
type ScanFunc func(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)
