package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/restport/internal/msgpack"
)

// Airport actions.
const (
	ActionListSchemas       = "list_schemas"
	ActionEndpoints         = "endpoints"
	ActionFlightInfo        = "flight_info"
	ActionCatalogVersion    = "catalog_version"
	ActionCreateTransaction = "create_transaction"
)

// DoAction dispatches the Airport actions the tables need to be attached
// and scanned. Write actions are not supported.
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoAction called",
		append(logAttrs(ctx),
			"type", action.GetType(),
			"body_size", len(action.GetBody()),
		)...,
	)

	switch action.GetType() {
	case ActionListSchemas:
		return s.handleListSchemas(ctx, action, stream)
	case ActionEndpoints:
		return s.handleEndpoints(ctx, action, stream)
	case ActionFlightInfo:
		return s.handleFlightInfo(ctx, action, stream)
	case ActionCatalogVersion:
		return s.handleCatalogVersion(ctx, stream)
	case ActionCreateTransaction:
		return s.handleCreateTransaction(ctx, action, stream)
	default:
		return status.Errorf(codes.Unimplemented, "unknown action type: %s", action.GetType())
	}
}

// ListActions advertises the supported actions.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	actions := []*flight.ActionType{
		{Type: ActionListSchemas, Description: "catalog root with the schemas and their tables"},
		{Type: ActionEndpoints, Description: "endpoints for a table scan with pushed-down filters"},
		{Type: ActionFlightInfo, Description: "FlightInfo of one table"},
		{Type: ActionCatalogVersion, Description: "catalog version fingerprint"},
		{Type: ActionCreateTransaction, Description: "no-op transaction identifier"},
	}
	for _, a := range actions {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

// sendMsgpack encodes v as the single result of an action.
func (s *Server) sendMsgpack(stream flight.FlightService_DoActionServer, action string, v any) error {
	body, err := msgpack.Encode(v)
	if err != nil {
		s.logger.Error("Failed to encode action result", "action", action, "error", err)
		return status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	if err := stream.Send(&flight.Result{Body: body}); err != nil {
		s.logger.Error("Failed to send action result", "action", action, "error", err)
		return status.Errorf(codes.Internal, "failed to send result: %v", err)
	}
	return nil
}

// handleCreateTransaction answers with a nil identifier: tables are read
// only, so there is nothing to isolate.
func (s *Server) handleCreateTransaction(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params struct {
		CatalogName string `msgpack:"catalog_name"`
	}
	if err := msgpack.DecodeOptional(action.GetBody(), &params); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid parameters: %v", err)
	}
	s.logger.Debug("create_transaction", "catalog_name", params.CatalogName)

	// The identifier key must be present even when nil.
	return s.sendMsgpack(stream, ActionCreateTransaction, map[string]any{
		"identifier": nil,
	})
}

// handleCatalogVersion reports the fingerprint of the current catalog.
func (s *Server) handleCatalogVersion(ctx context.Context, stream flight.FlightService_DoActionServer) error {
	contents, err := s.catalogContents(ctx)
	if err != nil {
		return err
	}
	return s.sendMsgpack(stream, ActionCatalogVersion, contents.versionInfo())
}
