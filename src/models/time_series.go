package models

import "time"

// MTimeSeriesPoint is one daily close of a symbol.
type MTimeSeriesPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// MCachedSeries is a provider response kept by the series cache.
type MCachedSeries struct {
	Symbol    string             `json:"symbol"`
	Series    []MTimeSeriesPoint `json:"series"`
	FetchedAt time.Time          `json:"fetched_at"`
}
