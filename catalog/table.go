package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Table is a queryable table with a fixed schema.
type Table interface {
	Name() string
	Comment() string

	// ArrowSchema returns the full table schema. MUST NOT be nil.
	ArrowSchema() *arrow.Schema

	// Scan returns the table rows. The reader schema MUST equal ArrowSchema;
	// the host engine applies projection itself.
	// Context cancellation MUST stop the scan.
	// Caller MUST call reader.Release().
	Scan(ctx context.Context, opts *ScanOptions) (array.RecordReader, error)
}
