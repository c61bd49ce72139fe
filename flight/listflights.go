package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/restport/internal/serialize"
)

// ListFlights returns a single FlightInfo whose ticket is the zstd
// compressed table listing in the Flight SQL GetTables layout.
// Criteria are ignored.
func (s *Server) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	listing, err := serialize.SerializeCatalog(ctx, s.catalog, s.allocator)
	if err != nil {
		s.logger.Error("Failed to serialize catalog", "error", err)
		return scanStatus(err, "failed to serialize catalog")
	}
	compressed, err := serialize.CompressCatalog(listing)
	if err != nil {
		s.logger.Error("Failed to compress catalog", "error", err)
		return status.Errorf(codes.Internal, "failed to compress catalog: %v", err)
	}

	info := &flight.FlightInfo{
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorCMD,
			Cmd:  []byte("ListFlights"),
		},
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: compressed},
		}},
		TotalRecords: -1,
		TotalBytes:   int64(len(compressed)),
	}
	if err := stream.Send(info); err != nil {
		s.logger.Error("Failed to send FlightInfo", "error", err)
		return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
	}

	s.logger.Debug("ListFlights completed",
		"uncompressed_bytes", len(listing),
		"compressed_bytes", len(compressed),
	)
	return nil
}
