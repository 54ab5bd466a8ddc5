package main

import (
	"context"
	"fmt"
	"time"

	datasource "market-agent/src/data_source"
	"market-agent/src/data_source/alphavantage"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"
	"market-agent/src/network"
	"market-agent/src/reasoner"
	"market-agent/src/relay"
	"market-agent/src/storage"
	"market-agent/src/utils"
)

const (
	// Cached series older than this are removed by the cleanup loop
	cacheRetention  = 7 * 24 * time.Hour
	cleanupInterval = time.Hour
)

// -----------------------------------------------------------------------------

// setupDatabase opens the series cache, or returns nil when caching is off
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.ISeriesCache, error) {
	var (
		db  interfaces.ISeriesCache
		err error
	)

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config, logger.NewLogger(config.LogLevel, "PostgresDB"))
	case "sqlite":
		db, err = storage.NewAsyncSQLiteDB(config, logger.NewLogger(config.LogLevel, "SQLiteDB"))
	default:
		appLogger.Info("Series cache disabled")
		return nil, nil
	}

	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		db.Close()
		return nil, err
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupProvider builds the Alpha Vantage source, wrapped by the cache when one
// is configured
func setupProvider(config *models.MConfig, db interfaces.ISeriesCache) interfaces.ISeriesProvider {
	netMgr := network.NewAsyncNetworkManager(config, logger.NewLogger(config.LogLevel, "NetworkManager"))
	source := alphavantage.NewAlphaVantageSource(config.Provider, netMgr, logger.NewLogger(config.LogLevel, "AlphaVantage"))
	if db == nil {
		return source
	}

	cacheLogger := logger.NewLogger(config.LogLevel, "SeriesCache")
	scheduler := utils.NewMarketScheduler(cacheLogger)
	ttl := time.Duration(config.Provider.CacheTTLSeconds) * time.Second
	return datasource.NewCachedSource(source, db, scheduler, ttl, cacheLogger)
}

// -----------------------------------------------------------------------------

// runCleanup drops stale cache entries until ctx ends
func runCleanup(ctx context.Context, db interfaces.ISeriesCache, appLogger *logger.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := db.CleanupOldData(ctx, now.Add(-cacheRetention)); err != nil {
				appLogger.Warning("Cache cleanup failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func setupReasoner(config *models.MConfig) (interfaces.IReasoner, error) {
	switch config.Agent.Reasoner {
	case "keyword":
		return reasoner.NewKeywordReasoner(), nil
	default:
		return reasoner.NewOpenAIReasoner(config.Agent, logger.NewLogger(config.LogLevel, "OpenAIReasoner"))
	}
}

// -----------------------------------------------------------------------------

// setupRelay returns the publisher for the configured driver and the local hub
// serving /ws, which is nil with hosted Pusher. The hub and the redis bridge
// run until ctx ends.
func setupRelay(ctx context.Context, config *models.MConfig, m *metrics.Collector, appLogger *logger.Logger) (interfaces.IRelay, *relay.Hub, func(), error) {
	relayLogger := logger.NewLogger(config.LogLevel, "Relay")

	if config.Relay.Driver == "pusher" {
		appLogger.Info("Publishing on hosted Pusher app %s (cluster %s)", config.Relay.AppID, config.Relay.Cluster)
		return relay.NewPusherRelay(config.Relay, relayLogger, m), nil, func() {}, nil
	}

	hub := relay.NewHub(relayLogger, m)
	go hub.Run(ctx)

	if config.Relay.Driver != "redis" {
		return hub, hub, func() {}, nil
	}

	redisRelay := relay.NewRedisRelay(config.Relay, relayLogger, m)
	if err := redisRelay.Ping(ctx); err != nil {
		redisRelay.Close()
		return nil, nil, nil, err
	}
	if err := redisRelay.Bridge(ctx, hub); err != nil {
		redisRelay.Close()
		return nil, nil, nil, fmt.Errorf("bridging redis: %w", err)
	}
	closeRelay := func() {
		if err := redisRelay.Close(); err != nil {
			appLogger.Warning("Closing redis: %v", err)
		}
	}
	return redisRelay, hub, closeRelay, nil
}
