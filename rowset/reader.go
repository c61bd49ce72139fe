package rowset

import (
	"iter"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/restport/flatten"
	"github.com/hugr-lab/restport/mapping"
)

// DefaultBatchSize is the number of rows per record batch when none is set.
const DefaultBatchSize = 1024

// Reader is an array.RecordReader over a lazy row sequence. Rows are pulled
// only when the consumer asks for the next batch, so an abandoned reader
// stops the underlying fetch loop on Release.
//
// A batch that was interrupted by an error is still delivered with the rows
// read before it; the following Next returns false and Err reports the
// failure.
type Reader struct {
	refCount  atomic.Int64
	schema    *arrow.Schema
	columns   []mapping.Column
	keys      []string
	mem       memory.Allocator
	batchSize int

	next func() (flatten.Row, error, bool)
	stop func()

	cur  arrow.RecordBatch
	err  error
	done bool
}

var _ array.RecordReader = (*Reader)(nil)

// NewReader returns a reader producing batches of table rows from rows.
func NewReader(mem memory.Allocator, table *mapping.Table, rows iter.Seq2[flatten.Row, error], batchSize int) *Reader {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	keys := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		keys[i] = c.SourceKey()
	}
	next, stop := iter.Pull2(rows)
	r := &Reader{
		schema:    Schema(table),
		columns:   table.Columns,
		keys:      keys,
		mem:       mem,
		batchSize: batchSize,
		next:      next,
		stop:      stop,
	}
	r.refCount.Store(1)
	return r
}

func (r *Reader) Retain() { r.refCount.Add(1) }

func (r *Reader) Release() {
	if r.refCount.Add(-1) != 0 {
		return
	}
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	r.finish()
}

func (r *Reader) Schema() *arrow.Schema { return r.schema }

func (r *Reader) Err() error { return r.err }

func (r *Reader) RecordBatch() arrow.RecordBatch { return r.cur }

// Record returns the current batch.
//
// Deprecated: use RecordBatch.
func (r *Reader) Record() arrow.RecordBatch { return r.cur }

func (r *Reader) finish() {
	if !r.done {
		r.done = true
		r.stop()
	}
}

// Next builds the next batch.
func (r *Reader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.done {
		return false
	}

	b := array.NewRecordBuilder(r.mem, r.schema)
	defer b.Release()

	values := make([]any, len(r.columns))
	n := 0
	for n < r.batchSize {
		row, err, ok := r.next()
		if !ok {
			r.finish()
			break
		}
		if err == nil {
			err = r.coerce(row, values)
		}
		if err != nil {
			r.err = err
			r.finish()
			break
		}
		for i, v := range values {
			appendValue(b.Field(i), r.columns[i].Type, v)
		}
		n++
	}
	if n == 0 {
		return false
	}
	r.cur = b.NewRecordBatch()
	return true
}

// coerce converts every column value of row into values. Nothing is
// appended until the whole row converted.
func (r *Reader) coerce(row flatten.Row, values []any) error {
	for i, c := range r.columns {
		raw := row[r.keys[i]]
		v, err := Coerce(raw, c.Type)
		if err != nil {
			return &ConversionError{Column: c.Name, Type: c.Type, Value: raw, Err: err}
		}
		values[i] = v
	}
	return nil
}

func appendValue(b array.Builder, t mapping.ScalarType, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch t {
	case mapping.TypeLong:
		b.(*array.Int64Builder).Append(v.(int64))
	case mapping.TypeInt:
		b.(*array.Int32Builder).Append(v.(int32))
	case mapping.TypeFloat:
		b.(*array.Float32Builder).Append(v.(float32))
	case mapping.TypeDouble:
		b.(*array.Float64Builder).Append(v.(float64))
	case mapping.TypeTimestamp:
		b.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	case mapping.TypeDate:
		b.(*array.Date32Builder).Append(arrow.Date32FromTime(v.(time.Time)))
	case mapping.TypeTime:
		b.(*array.Time64Builder).Append(arrow.Time64(v.(time.Duration).Microseconds()))
	case mapping.TypeByte:
		b.(*array.BinaryBuilder).Append(v.([]byte))
	case mapping.TypeBoolean:
		b.(*array.BooleanBuilder).Append(v.(bool))
	case mapping.TypeGeometry:
		b.(*array.ExtensionBuilder).StorageBuilder().(*array.BinaryBuilder).Append(v.([]byte))
	default:
		b.(*array.StringBuilder).Append(v.(string))
	}
}
