package utils

import (
	"sync"
	"time"

	"market-agent/src/logger"
)

// MarketScheduler memoizes one TradingCalendar per exchange and answers
// freshness questions for symbols seen at request time.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar // by MIC
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(l *logger.Logger) *MarketScheduler {
	return &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
}

// -----------------------------------------------------------------------------

// CalendarFor returns the calendar of the symbol's exchange, loading it once
func (ms *MarketScheduler) CalendarFor(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol)

	ms.mu.RLock()
	cal, ok := ms.Calendars[mic]
	ms.mu.RUnlock()
	if ok {
		return cal
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if cal, ok := ms.Calendars[mic]; ok {
		return cal
	}

	cal = GetCalendar(symbol)
	ms.Calendars[mic] = cal
	ms.Logger.Debug("MarketScheduler: loaded calendar %s for %s (%d cached)", cal.MIC, symbol, len(ms.Calendars))
	return cal
}

// -----------------------------------------------------------------------------

// TradedSince reports whether the symbol's market has been open since t
func (ms *MarketScheduler) TradedSince(symbol string, t time.Time, now time.Time) bool {
	return ms.CalendarFor(symbol).HasTradedBetween(t, now)
}
