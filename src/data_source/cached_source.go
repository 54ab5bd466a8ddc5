package datasource

import (
	"context"
	"time"

	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"
	"market-agent/src/utils"

	"golang.org/x/sync/singleflight"
)

// CachedSource puts the series cache in front of a provider. Concurrent
// requests for one symbol share a single upstream call.
type CachedSource struct {
	Provider  interfaces.ISeriesProvider
	Cache     interfaces.ISeriesCache
	Scheduler *utils.MarketScheduler
	TTL       time.Duration
	Logger    *logger.Logger
	Now       func() time.Time

	group singleflight.Group
}

var _ interfaces.ISeriesProvider = (*CachedSource)(nil)

// -----------------------------------------------------------------------------

func NewCachedSource(provider interfaces.ISeriesProvider, cache interfaces.ISeriesCache, scheduler *utils.MarketScheduler, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{
		Provider:  provider,
		Cache:     cache,
		Scheduler: scheduler,
		TTL:       ttl,
		Logger:    log,
		Now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *CachedSource) Name() string {
	return s.Provider.Name() + "+cache"
}

// -----------------------------------------------------------------------------

func (s *CachedSource) FetchDaily(ctx context.Context, symbol string) ([]models.MTimeSeriesPoint, error) {
	now := s.Now().UTC()

	entry, err := s.Cache.GetSeries(ctx, symbol)
	if err != nil {
		s.Logger.Warning("Cache read for %s failed, going upstream: %v", symbol, err)
	} else if entry != nil && s.isFresh(entry, now) {
		s.Logger.Debug("Cache hit for %s (fetched %s)", symbol, entry.FetchedAt.Format(time.RFC3339))
		return entry.Series, nil
	}

	v, err, shared := s.group.Do(symbol, func() (interface{}, error) {
		series, err := s.Provider.FetchDaily(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.SaveSeries(ctx, &models.MCachedSeries{Symbol: symbol, Series: series, FetchedAt: now}); err != nil {
			s.Logger.Warning("Cache write for %s failed: %v", symbol, err)
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.Logger.Debug("Shared upstream fetch for %s", symbol)
	}
	return v.([]models.MTimeSeriesPoint), nil
}

// -----------------------------------------------------------------------------

// isFresh keeps an entry younger than the TTL. An older entry is still good
// when its market has not been open since it was fetched.
func (s *CachedSource) isFresh(entry *models.MCachedSeries, now time.Time) bool {
	if now.Sub(entry.FetchedAt) < s.TTL {
		return true
	}
	if s.Scheduler == nil {
		return false
	}
	return !s.Scheduler.TradedSince(entry.Symbol, entry.FetchedAt, now)
}
