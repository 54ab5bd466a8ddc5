package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-agent/src/agent"
	"market-agent/src/capability"
	"market-agent/src/config"
	"market-agent/src/handler"
	"market-agent/src/logger"
	"market-agent/src/metrics"
)

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config (YAML, then environment, then validation)
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, appLogger); err != nil {
		appLogger.Critical("Exiting: %v", err)
		os.Exit(1)
	}
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

func run(ctx context.Context, conf *config.Config, appLogger *logger.Logger) error {
	m := metrics.NewCollector()

	// 4. Upstream provider and optional series cache
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		go runCleanup(ctx, db, appLogger)
	}
	provider := setupProvider(conf.MConfig, db)

	// 5. Capabilities, reasoner and orchestrator
	registry, err := capability.NewRegistry(capability.NewFetchHistoricalData(provider))
	if err != nil {
		return err
	}
	reasoner, err := setupReasoner(conf.MConfig)
	if err != nil {
		return err
	}
	orchestrator := agent.NewOrchestrator(reasoner, registry, conf.Agent.MaxSteps, logger.NewLogger(conf.LogLevel, "Orchestrator"), m)
	appLogger.Info("Agent ready: reasoner %s, provider %s, capabilities %v", reasoner.Name(), provider.Name(), registry.Names())

	// 6. Event relay
	publisher, hub, closeRelay, err := setupRelay(ctx, conf.MConfig, m, appLogger)
	if err != nil {
		return err
	}
	defer closeRelay()

	// 7. Request handler, bound to HTTP and gRPC
	h := handler.NewHandler(orchestrator, publisher, conf.MConfig, logger.NewLogger(conf.LogLevel, "Handler"))
	return runServers(ctx, conf, h, hub, m, registry.Names(), appLogger)
}
