package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers market-hours questions using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// Ticker suffix to exchange MIC (ISO 10383). Anything else is NYSE.
var suffixMIC = []struct {
	suffix string
	mic    string
}{
	{".L", "xlon"},
	{".PA", "xpar"},
	{".DE", "xfra"},
	{".AS", "xams"},
	{".BR", "xbru"},
	{".MI", "xmil"},
	{".MC", "xmad"},
	{".ST", "xsto"},
	{".CO", "xcse"},
	{".HE", "xhel"},
	{".VI", "xwbo"},
	{".SW", "xswx"},
	{".TO", "xtse"},
	{".V", "xtsx"},
	{".T", "xtks"},
	{".HK", "xhkg"},
	{".AX", "xasx"},
	{".KS", "xkrx"},
	{".TW", "xtai"},
	{".SS", "xshg"},
	{".SZ", "xshe"},
}

const (
	defaultMIC = "xnys"

	// Market hours are sampled at this step when scanning a window
	openScanStep = 30 * time.Minute
	// Windows longer than this always contain a session
	maxOpenScan = 7 * 24 * time.Hour
)

// -----------------------------------------------------------------------------

// MICForSymbol maps a ticker to the MIC of its primary exchange
func MICForSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	for _, m := range suffixMIC {
		if strings.HasSuffix(symbol, m.suffix) {
			return m.mic
		}
	}
	return defaultMIC
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		mic = defaultMIC
		cal = calendar.GetCalendar(mic)
	}

	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for '%s'. Using simple fallback (Mon-Fri 09:30-16:00 New York).", symbol)
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// HasTradedBetween reports whether the market was open at any point in
// [from, to]. A daily close fetched before such a window may be outdated.
func (tc *TradingCalendar) HasTradedBetween(from, to time.Time) bool {
	if !to.After(from) {
		return false
	}
	if to.Sub(from) > maxOpenScan {
		return true
	}

	for t := from; t.Before(to); t = t.Add(openScanStep) {
		if tc.IsOpenOnMinute(t) {
			return true
		}
	}
	return tc.IsOpenOnMinute(to)
}
