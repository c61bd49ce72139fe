// Command restport serves the network API tables declared in a YAML file
// as an Arrow Flight catalog that DuckDB attaches with the Airport
// extension.
//
//	restport -config restport.yaml
//	duckdb -c "ATTACH 'restport' (TYPE airport, LOCATION 'grpc://localhost:50051')"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/restport"
	"github.com/hugr-lab/restport/config"
	"github.com/hugr-lab/restport/fetch"
	"github.com/hugr-lab/restport/transport"
)

func main() {
	configPath := flag.String("config", "restport.yaml", "Path to the configuration file")
	address := flag.String("address", "", "Flight listen address, overrides server.address")
	logLevel := flag.String("log-level", "", "Log level, overrides server.log_level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = *logLevel
	}
	level, err := cfg.Server.Level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("restport stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := fetch.NewMetrics(reg)
	if err != nil {
		return err
	}

	pool := transport.NewPool(cfg.HTTP.Transport(logger))
	defer pool.Close()

	cat, err := buildCatalog(cfg, restport.Deps{Transport: pool, Logger: logger, Metrics: metrics})
	if err != nil {
		return err
	}

	serverConfig := restport.ServerConfig{
		Catalog:        cat,
		Logger:         logger,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		Address:        cfg.Server.PublicAddress,
	}
	if len(cfg.Server.Tokens) > 0 {
		serverConfig.Auth = restport.StaticTokens(cfg.Server.Tokens)
	}
	grpcServer := grpc.NewServer(restport.ServerOptions(serverConfig)...)
	if err := restport.NewServer(grpcServer, serverConfig); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Address, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Flight server listening", "address", lis.Addr().String(), "tables", len(cfg.Tables))
		return grpcServer.Serve(lis)
	})

	var httpServer *http.Server
	if cfg.Server.MetricsAddress != "-" {
		httpServer = &http.Server{
			Addr:    cfg.Server.MetricsAddress,
			Handler: newRouter(reg, logger),
		}
		g.Go(func() error {
			logger.Info("HTTP server listening", "address", httpServer.Addr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdown(grpcServer, httpServer, cfg.Server.ShutdownTimeout, logger)
		return nil
	})

	return g.Wait()
}
