package main

import (
	"context"
	"fmt"

	"market-agent/src/config"
	pb "market-agent/src/grpc_control"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/relay"
	"market-agent/src/server"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------

// runServers serves HTTP and gRPC until ctx ends or one of them fails
func runServers(
	ctx context.Context,
	conf *config.Config,
	h interfaces.IChatHandler,
	hub *relay.Hub,
	m *metrics.Collector,
	capabilities []string,
	appLogger *logger.Logger,
) error {
	g, ctx := errgroup.WithContext(ctx)

	// 1. HTTP API, browser page, websocket relay and metrics
	srv := server.NewAPIServer(conf.MConfig, h, hub, m, capabilities, logger.NewLogger(conf.LogLevel, "APIServer"))
	g.Go(func() error {
		return srv.Start(ctx)
	})

	// 2. gRPC Control Server
	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
		grpcLogger := logger.NewLogger(conf.LogLevel, "ControlService")

		var subscribers pb.SubscriberCounter
		if hub != nil {
			subscribers = hub
		}
		svc := pb.NewControlService(conf.MConfig, h, subscribers, capabilities, grpcLogger)
		return pb.Serve(ctx, addr, svc, grpcLogger)
	})

	appLogger.Info("Servers started (http %s:%d, grpc %s:%d)", conf.Host, conf.Port, conf.GrpcHost, conf.GrpcPort)
	return g.Wait()
}
