package interfaces

import (
	"context"
	"time"

	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// ISeriesCache defines the contract for the provider response cache.
// -----------------------------------------------------------------------------

type ISeriesCache interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// GetSeries returns the cached entry for symbol, or nil on a miss.
	GetSeries(ctx context.Context, symbol string) (*models.MCachedSeries, error)

	// -----------------------------------------------------------------------------

	// SaveSeries inserts or replaces the entry for entry.Symbol.
	SaveSeries(ctx context.Context, entry *models.MCachedSeries) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes entries fetched before cutoff.
	CleanupOldData(ctx context.Context, cutoff time.Time) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
