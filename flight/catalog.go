package flight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/zeebo/xxh3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/internal/msgpack"
	"github.com/hugr-lab/restport/internal/serialize"
)

// schemaContents is one schema of the catalog root: its compressed list of
// table FlightInfos and the sha256 of that payload.
type schemaContents struct {
	schema     catalog.Schema
	serialized string
	sha256     string
}

type catalogContents struct {
	schemas []schemaContents
	version uint64
}

// catalogRoot is the AirportSerializedCatalogRoot payload. Optional map
// fields must be present with nil values.
func (c *catalogContents) catalogRoot() map[string]any {
	schemas := make([]map[string]any, len(c.schemas))
	for i, sc := range c.schemas {
		schemas[i] = map[string]any{
			"name":        sc.schema.Name(),
			"description": sc.schema.Comment(),
			"tags":        map[string]string{},
			"contents": map[string]any{
				"sha256":     sc.sha256,
				"url":        nil,
				"serialized": sc.serialized,
			},
			"is_default": i == 0,
		}
	}
	return map[string]any{
		"contents": map[string]any{
			"sha256":     fmt.Sprintf("%064x", c.version),
			"url":        nil,
			"serialized": nil,
		},
		"schemas":      schemas,
		"version_info": c.versionInfo(),
	}
}

func (c *catalogContents) versionInfo() map[string]any {
	return map[string]any{
		"catalog_version": c.version,
		"is_fixed":        true,
	}
}

// catalogContents serializes every schema. The version is an xxh3
// fingerprint of the schema names and content hashes, so it changes only
// when the served tables change.
func (s *Server) catalogContents(ctx context.Context) (*catalogContents, error) {
	schemas, err := s.catalog.Schemas(ctx)
	if err != nil {
		s.logger.Error("Failed to get schemas", "error", err)
		return nil, status.Errorf(codes.Internal, "failed to get schemas: %v", err)
	}

	h := xxh3.New()
	out := &catalogContents{schemas: make([]schemaContents, 0, len(schemas))}
	for _, schema := range schemas {
		sc, err := s.serializeSchemaContents(ctx, schema)
		if err != nil {
			s.logger.Error("Failed to serialize schema contents", "schema", schema.Name(), "error", err)
			return nil, status.Errorf(codes.Internal, "failed to serialize schema contents: %v", err)
		}
		_, _ = h.WriteString(schema.Name())
		_, _ = h.WriteString(sc.sha256)
		out.schemas = append(out.schemas, sc)
	}
	out.version = h.Sum64()
	return out, nil
}

// handleListSchemas returns the compressed catalog root used by ATTACH.
func (s *Server) handleListSchemas(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params struct {
		CatalogName string `msgpack:"catalog_name"`
	}
	if err := msgpack.DecodeOptional(action.GetBody(), &params); err != nil {
		// Parameters are advisory; a single catalog is served.
		s.logger.Debug("Ignoring undecodable list_schemas parameters", "error", err)
	}

	contents, err := s.catalogContents(ctx)
	if err != nil {
		return err
	}

	uncompressed, err := msgpack.Encode(contents.catalogRoot())
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	body, err := serialize.CompressedContent(uncompressed)
	if err != nil {
		s.logger.Error("Failed to compress catalog", "error", err)
		return status.Errorf(codes.Internal, "failed to compress response: %v", err)
	}
	if err := stream.Send(&flight.Result{Body: body}); err != nil {
		return status.Errorf(codes.Internal, "failed to send result: %v", err)
	}

	s.logger.Info("Listed schemas",
		"catalog_name", params.CatalogName,
		"schemas", len(contents.schemas),
		"catalog_version", contents.version,
		"bytes", len(body),
	)
	return nil
}

func (s *Server) serializeSchemaContents(ctx context.Context, schema catalog.Schema) (schemaContents, error) {
	tables, err := schema.Tables(ctx)
	if err != nil {
		return schemaContents{}, fmt.Errorf("failed to get tables: %w", err)
	}

	infos := make([][]byte, 0, len(tables))
	for _, table := range tables {
		info, err := s.tableFlightInfo(schema, table, nil)
		if err != nil {
			return schemaContents{}, err
		}
		infoBytes, err := proto.Marshal(info)
		if err != nil {
			return schemaContents{}, fmt.Errorf("failed to marshal FlightInfo: %w", err)
		}
		infos = append(infos, infoBytes)
	}

	uncompressed, err := msgpack.Encode(infos)
	if err != nil {
		return schemaContents{}, fmt.Errorf("failed to encode FlightInfo list: %w", err)
	}
	serialized, err := serialize.CompressedContent(uncompressed)
	if err != nil {
		return schemaContents{}, fmt.Errorf("failed to compress schema contents: %w", err)
	}
	hash := sha256.Sum256(serialized)

	return schemaContents{
		schema:     schema,
		serialized: string(serialized),
		sha256:     hex.EncodeToString(hash[:]),
	}, nil
}

// tableFlightInfo describes one table. A nil descriptor selects the PATH
// descriptor [schema, table].
func (s *Server) tableFlightInfo(schema catalog.Schema, table catalog.Table, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	arrowSchema := table.ArrowSchema()
	if arrowSchema == nil {
		return nil, status.Errorf(codes.Internal, "table %s.%s has nil Arrow schema", schema.Name(), table.Name())
	}
	if desc == nil {
		desc = &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{schema.Name(), table.Name()},
		}
	}

	appMetadata, err := msgpack.Encode(map[string]any{
		"type":         "table",
		"schema":       schema.Name(),
		"catalog":      "",
		"name":         table.Name(),
		"comment":      table.Comment(),
		"input_schema": nil,
		"action_name":  nil,
		"description":  nil,
		"extra_data":   nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode app metadata: %w", err)
	}

	ticket, err := EncodeTicket(schema.Name(), table.Name())
	if err != nil {
		return nil, err
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(arrowSchema, s.allocator),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket:   &flight.Ticket{Ticket: ticket},
			Location: s.location(),
		}},
		TotalRecords: -1,
		TotalBytes:   -1,
		AppMetadata:  appMetadata,
	}, nil
}

// lookupTable resolves schema.table, answering NotFound for either part.
func (s *Server) lookupTable(ctx context.Context, schemaName, tableName string) (catalog.Schema, catalog.Table, error) {
	schema, err := s.catalog.Schema(ctx, schemaName)
	if err != nil {
		return nil, nil, status.Errorf(codes.Internal, "failed to get schema: %v", err)
	}
	if schema == nil {
		return nil, nil, status.Errorf(codes.NotFound, "schema not found: %s", schemaName)
	}
	table, err := schema.Table(ctx, tableName)
	if err != nil {
		return nil, nil, status.Errorf(codes.Internal, "failed to get table: %v", err)
	}
	if table == nil {
		return nil, nil, status.Errorf(codes.NotFound, "table not found: %s.%s", schemaName, tableName)
	}
	return schema, table, nil
}
