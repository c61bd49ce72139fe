// Package flight implements the Arrow Flight service the DuckDB Airport
// extension talks to.
package flight

import (
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/restport/catalog"
)

// Server implements the Flight service handlers.
// Embeds BaseFlightServer so unimplemented RPCs answer Unimplemented.
type Server struct {
	flight.BaseFlightServer

	catalog   catalog.Catalog
	allocator memory.Allocator
	logger    *slog.Logger
	address   string // public address advertised in FlightEndpoint locations
}

// NewServer creates a Flight server over cat. A nil allocator or logger
// selects the defaults.
func NewServer(cat catalog.Catalog, allocator memory.Allocator, logger *slog.Logger, address string) *Server {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog:   cat,
		allocator: allocator,
		logger:    logger,
		address:   address,
	}
}

// RegisterFlightServer registers the Flight service on grpcServer.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}

// location returns the endpoint locations advertised to clients.
func (s *Server) location() []*flight.Location {
	if s.address == "" {
		return nil
	}
	uri := s.address
	if !strings.Contains(uri, "://") {
		uri = "grpc://" + uri
	}
	return []*flight.Location{{Uri: uri}}
}
