package interfaces

import (
	"context"

	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// ISeriesProvider fetches the daily close series of a symbol.
// -----------------------------------------------------------------------------

type ISeriesProvider interface {

	// Name returns the unique identifier of the provider
	Name() string

	// -----------------------------------------------------------------------------

	// FetchDaily returns daily closes in ascending date order.
	FetchDaily(ctx context.Context, symbol string) ([]models.MTimeSeriesPoint, error)
}
