package restport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/restport/auth"
	"github.com/hugr-lab/restport/catalog"
	"github.com/hugr-lab/restport/flight"
)

// ErrInvalidConfig wraps ServerConfig and TableDef validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig configures the Flight service.
type ServerConfig struct {
	// Catalog is required.
	Catalog catalog.Catalog

	// Auth authenticates calls; nil lets every call through. It takes
	// effect only through the interceptors of ServerOptions.
	Auth auth.Authenticator

	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxMessageSize caps gRPC messages in both directions. Zero keeps the
	// gRPC default of 4MB.
	MaxMessageSize int

	// Address is advertised in flight endpoints so clients can route
	// DoGet calls back here. Without it endpoints carry no location.
	Address string
}

// NewServer registers the Flight service on grpcServer. Serving and
// stopping grpcServer stays with the caller:
//
//	grpcServer := grpc.NewServer(restport.ServerOptions(config)...)
//	if err := restport.NewServer(grpcServer, config); err != nil {
//	    return err
//	}
//	return grpcServer.Serve(lis)
func NewServer(grpcServer *grpc.Server, config ServerConfig) error {
	switch {
	case config.Catalog == nil:
		return fmt.Errorf("%w: catalog is required", ErrInvalidConfig)
	case config.MaxMessageSize < 0:
		return fmt.Errorf("%w: max message size %d is negative", ErrInvalidConfig, config.MaxMessageSize)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	flight.RegisterFlightServer(grpcServer, flight.NewServer(config.Catalog, allocator, logger, config.Address))
	logger.Info("Flight service registered",
		"auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
		"address", config.Address,
	)
	return nil
}

// ServerOptions returns the gRPC options config implies: auth
// interceptors and message size limits.
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption
	if config.Auth != nil {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(auth.UnaryServerInterceptor(config.Auth)),
			grpc.ChainStreamInterceptor(auth.StreamServerInterceptor(config.Auth)),
		)
	}
	if n := config.MaxMessageSize; n > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(n), grpc.MaxSendMsgSize(n))
	}
	return opts
}
