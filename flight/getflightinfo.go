package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetFlightInfo returns the schema and a full-scan ticket of a table.
// The descriptor path must be [schema_name, table_name].
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = EnrichContextMetadata(ctx)

	if desc.GetType() != flight.DescriptorPATH {
		return nil, status.Error(codes.InvalidArgument, "descriptor must be PATH type")
	}
	path := desc.GetPath()
	if len(path) != 2 {
		return nil, status.Error(codes.InvalidArgument, "path must contain exactly 2 elements: [schema_name, table_name]")
	}

	schema, table, err := s.lookupTable(ctx, path[0], path[1])
	if err != nil {
		return nil, err
	}
	info, err := s.tableFlightInfo(schema, table, desc)
	if err != nil {
		s.logger.Error("Failed to build flight info", "schema", path[0], "table", path[1], "error", err)
		return nil, scanStatus(err, "failed to build flight info")
	}

	s.logger.Debug("GetFlightInfo",
		append(logAttrs(ctx),
			"schema", path[0],
			"table", path[1],
			"num_fields", table.ArrowSchema().NumFields(),
		)...,
	)
	return info, nil
}
