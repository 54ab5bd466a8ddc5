package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"
)

// -----------------------------------------------------------------------------

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"

	functionDaily   = "TIME_SERIES_DAILY"
	timeSeriesLabel = "Time Series (Daily)"
	closeLabel      = "4. close"
)

// AlphaVantageSource fetches daily closes from the Alpha Vantage query API.
type AlphaVantageSource struct {
	BaseURL string
	APIKey  string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

var _ interfaces.ISeriesProvider = (*AlphaVantageSource)(nil)

// -----------------------------------------------------------------------------

func NewAlphaVantageSource(cfg models.MProviderConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *AlphaVantageSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AlphaVantageSource{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *AlphaVantageSource) Name() string {
	return "alphavantage"
}

// -----------------------------------------------------------------------------

// FetchDaily issues one TIME_SERIES_DAILY request for symbol
func (s *AlphaVantageSource) FetchDaily(ctx context.Context, symbol string) ([]models.MTimeSeriesPoint, error) {
	params := map[string]string{
		"function": functionDaily,
		"symbol":   symbol,
		"apikey":   s.APIKey,
	}

	respBytes, err := s.Network.Get(ctx, s.BaseURL, params)
	if err != nil {
		return nil, helpers.NewUpstreamDataError(fmt.Sprintf("fetching %s", symbol), err)
	}

	series, err := ParseDailyResponse(respBytes)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Fetched %s: %d points [%s -> %s]", symbol, len(series), series[0].Date, series[len(series)-1].Date)
	return series, nil
}

// -----------------------------------------------------------------------------

type dailyResponse struct {
	TimeSeries   map[string]map[string]string `json:"Time Series (Daily)"`
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
}

// -----------------------------------------------------------------------------

// ParseDailyResponse normalises a TIME_SERIES_DAILY body into points sorted
// ascending by date. The provider's key order is never relied on.
func ParseDailyResponse(data []byte) ([]models.MTimeSeriesPoint, error) {
	var resp dailyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, helpers.NewUpstreamDataError("malformed provider response", err)
	}

	if resp.TimeSeries == nil {
		reason := firstNonEmpty(resp.ErrorMessage, resp.Note, resp.Information)
		if reason == "" {
			reason = fmt.Sprintf("missing %q field", timeSeriesLabel)
		}
		return nil, helpers.NewUpstreamDataError("provider returned no time series", fmt.Errorf("%s", reason))
	}

	points := make([]models.MTimeSeriesPoint, 0, len(resp.TimeSeries))
	for date, values := range resp.TimeSeries {
		raw, ok := values[closeLabel]
		if !ok {
			return nil, helpers.NewUpstreamDataError(fmt.Sprintf("no %q for %s", closeLabel, date), nil)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, helpers.NewUpstreamDataError(fmt.Sprintf("bad close value for %s", date), err)
		}
		points = append(points, models.MTimeSeriesPoint{Date: date, Value: value})
	}

	if len(points) == 0 {
		return nil, helpers.NewUpstreamDataError("provider returned an empty time series", nil)
	}

	// ISO dates sort lexically
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})

	return points, nil
}

// -----------------------------------------------------------------------------

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
