package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/models"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	FetchHistoricalName        = "fetchHistoricalData"
	fetchHistoricalDescription = "Triggers stock data based on their ticker"
)

// FetchHistoricalArgs are the arguments of fetchHistoricalData
type FetchHistoricalArgs struct {
	Ticker string `json:"ticker" jsonschema:"The stock ticker symbol, e.g. AAPL or VOD.L"`
}

// -----------------------------------------------------------------------------

// FetchHistoricalData loads the daily close series of a ticker. It only
// computes; delivering the result to subscribers is the caller's job.
type FetchHistoricalData struct {
	Provider interfaces.ISeriesProvider
}

var _ Capability = (*FetchHistoricalData)(nil)

func NewFetchHistoricalData(provider interfaces.ISeriesProvider) *FetchHistoricalData {
	return &FetchHistoricalData{Provider: provider}
}

func (f *FetchHistoricalData) Name() string        { return FetchHistoricalName }
func (f *FetchHistoricalData) Description() string { return fetchHistoricalDescription }

// -----------------------------------------------------------------------------

func (f *FetchHistoricalData) Schema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[FetchHistoricalArgs](nil)
	if err != nil {
		return nil, err
	}
	minLen := 1
	if prop, ok := schema.Properties["ticker"]; ok {
		prop.MinLength = &minLen
	}
	return schema, nil
}

// -----------------------------------------------------------------------------

func (f *FetchHistoricalData) Run(ctx context.Context, args json.RawMessage) (Result, error) {
	var in FetchHistoricalArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, helpers.NewValidationError("decode fetchHistoricalData arguments", err)
	}

	ticker := strings.TrimSpace(in.Ticker)
	if ticker == "" {
		return nil, helpers.NewValidationError("ticker cannot be blank", nil)
	}

	series, err := f.Provider.FetchDaily(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, helpers.NewUpstreamDataError(fmt.Sprintf("no data points for %s", ticker), nil)
	}

	return &SeriesResult{Ticker: ticker, Series: series}, nil
}

// -----------------------------------------------------------------------------
// SeriesResult
// -----------------------------------------------------------------------------

type SeriesResult struct {
	Ticker string
	Series []models.MTimeSeriesPoint
}

// Last is the most recent point
func (r *SeriesResult) Last() models.MTimeSeriesPoint {
	return r.Series[len(r.Series)-1]
}

// Summary serializes the most recent point
func (r *SeriesResult) Summary() string {
	data, err := json.Marshal(r.Last())
	if err != nil {
		return fmt.Sprintf(`{"date":%q,"value":%v}`, r.Last().Date, r.Last().Value)
	}
	return string(data)
}
