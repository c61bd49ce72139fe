package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/restport/internal/msgpack"
)

// endpointsRequest is AirportGetFlightEndpointsRequest.
type endpointsRequest struct {
	Descriptor string `msgpack:"descriptor"`
	Parameters struct {
		JSONFilters              string   `msgpack:"json_filters"`
		ColumnIDs                []uint64 `msgpack:"column_ids"`
		TableFunctionParameters  string   `msgpack:"table_function_parameters"`
		TableFunctionInputSchema string   `msgpack:"table_function_input_schema"`
		AtUnit                   string   `msgpack:"at_unit"`
		AtValue                  string   `msgpack:"at_value"`
	} `msgpack:"parameters"`
}

// parseDescriptor decodes a serialized FlightDescriptor and checks it is a
// PATH of [schema, table].
func parseDescriptor(serialized string) (*flight.FlightDescriptor, error) {
	desc := &flight.FlightDescriptor{}
	if err := proto.Unmarshal([]byte(serialized), desc); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid descriptor: %v", err)
	}
	if desc.GetType() != flight.DescriptorPATH || len(desc.GetPath()) != 2 {
		return nil, status.Errorf(codes.InvalidArgument,
			"descriptor must be PATH type with 2 elements [schema, table], got %v", desc.GetPath())
	}
	return desc, nil
}

// ResolveColumns maps DuckDB column ids onto field names of schema. Ids
// outside the schema, such as the row id pseudo column, are skipped.
func ResolveColumns(schema *arrow.Schema, ids []uint64) []string {
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id >= uint64(schema.NumFields()) {
			continue
		}
		names = append(names, schema.Field(int(id)).Name)
	}
	return names
}

// handleEndpoints returns the endpoint for a scan. The ticket carries the
// pushed-down filters and the projected column names.
func (s *Server) handleEndpoints(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request endpointsRequest
	if err := msgpack.DecodeOptional(action.GetBody(), &request); err != nil {
		s.logger.Error("Failed to decode endpoints request", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	desc, err := parseDescriptor(request.Descriptor)
	if err != nil {
		return err
	}
	schemaName, tableName := desc.GetPath()[0], desc.GetPath()[1]

	params := request.Parameters
	if params.TableFunctionParameters != "" {
		return status.Errorf(codes.InvalidArgument, "%s.%s is not a table function", schemaName, tableName)
	}
	if params.AtUnit != "" || params.AtValue != "" {
		return status.Errorf(codes.InvalidArgument, "table %s.%s does not support time travel queries", schemaName, tableName)
	}

	_, table, err := s.lookupTable(ctx, schemaName, tableName)
	if err != nil {
		return err
	}

	td := &TicketData{
		Schema:  schemaName,
		Table:   tableName,
		Filters: params.JSONFilters,
		Columns: ResolveColumns(table.ArrowSchema(), params.ColumnIDs),
	}
	ticket, err := td.Encode()
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	endpoint, err := proto.Marshal(&flight.FlightEndpoint{
		Ticket:   &flight.Ticket{Ticket: ticket},
		Location: s.location(),
	})
	if err != nil {
		return status.Errorf(codes.Internal, "failed to marshal endpoint: %v", err)
	}

	s.logger.Debug("Endpoints resolved",
		append(logAttrs(ctx),
			"schema", schemaName,
			"table", tableName,
			"has_filters", params.JSONFilters != "",
			"columns", td.Columns,
		)...,
	)

	// A list of serialized FlightEndpoint messages.
	return s.sendMsgpack(stream, ActionEndpoints, []string{string(endpoint)})
}

// handleFlightInfo returns the FlightInfo of one table for a serialized
// descriptor.
func (s *Server) handleFlightInfo(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request struct {
		Descriptor string `msgpack:"descriptor"`
		AtUnit     string `msgpack:"at_unit"`
		AtValue    string `msgpack:"at_value"`
	}
	if err := msgpack.DecodeOptional(action.GetBody(), &request); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	desc, err := parseDescriptor(request.Descriptor)
	if err != nil {
		return err
	}
	if request.AtUnit != "" || request.AtValue != "" {
		return status.Errorf(codes.InvalidArgument, "table %s.%s does not support time travel queries", desc.GetPath()[0], desc.GetPath()[1])
	}

	schema, table, err := s.lookupTable(ctx, desc.GetPath()[0], desc.GetPath()[1])
	if err != nil {
		return err
	}
	info, err := s.tableFlightInfo(schema, table, desc)
	if err != nil {
		return scanStatus(err, "failed to build flight info")
	}
	body, err := proto.Marshal(info)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to marshal FlightInfo: %v", err)
	}
	return stream.Send(&flight.Result{Body: body})
}
