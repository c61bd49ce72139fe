package flight

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/restport/internal/recovery"
)

// DoGet streams the record batches of a table scan.
//
// The reader must produce the table's full schema; DuckDB projects the
// columns it asked for. Batches already sent stay with the client when the
// scan fails part way.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	_, table, err := s.lookupTable(ctx, td.Schema, td.Table)
	if err != nil {
		return err
	}
	fullSchema := table.ArrowSchema()
	if fullSchema == nil {
		return status.Errorf(codes.Internal, "table %s.%s has nil Arrow schema", td.Schema, td.Table)
	}

	attrs := append(logAttrs(ctx), "schema", td.Schema, "table", td.Table)
	s.logger.Debug("DoGet", append(attrs, "columns", td.Columns, "has_filters", td.Filters != "")...)

	operation := "scan " + td.Schema + "." + td.Table
	reader, err := recovery.Call(s.logger, operation, func() (array.RecordReader, error) {
		return table.Scan(ctx, td.ToScanOptions())
	})
	if err != nil {
		s.logger.Error("Table scan failed", append(attrs, "error", err)...)
		return scanStatus(err, "table scan failed")
	}
	defer reader.Release()

	if !fullSchema.Equal(reader.Schema()) {
		s.logger.Error("RecordReader schema does not match table schema",
			append(attrs,
				"table_schema_fields", fullSchema.NumFields(),
				"reader_schema_fields", reader.Schema().NumFields(),
			)...,
		)
		return status.Errorf(codes.Internal, "schema mismatch: table has %d fields, reader has %d fields",
			fullSchema.NumFields(), reader.Schema().NumFields())
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(fullSchema), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	var batches int
	var rows int64
	for {
		var ok bool
		if err := recovery.Do(s.logger, operation, func() error {
			ok = reader.Next()
			return nil
		}); err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			s.logger.Debug("DoGet cancelled by client", append(attrs, "batches_sent", batches, "rows_sent", rows)...)
			return status.Error(codes.Canceled, "request cancelled")
		}

		record := reader.RecordBatch()
		if err := writer.Write(record); err != nil {
			s.logger.Error("Failed to write record batch", append(attrs, "batch", batches, "error", err)...)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batches, err)
		}
		batches++
		rows += record.NumRows()
	}

	if err := reader.Err(); err != nil {
		s.logger.Error("Scan failed during streaming", append(attrs, "batches_sent", batches, "rows_sent", rows, "error", err)...)
		return scanStatus(err, "scan error")
	}

	s.logger.Debug("DoGet completed", append(attrs, "batches", batches, "rows", rows)...)
	return nil
}
