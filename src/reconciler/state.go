package reconciler

import "market-agent/src/models"

// Status of one display slot
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot names match the event kinds that fill them
const (
	SlotChart   = models.EventChart
	SlotTicker  = models.EventTicker
	SlotMessage = models.EventMessage
)

// Slots lists the display slots in render order
var Slots = []string{SlotChart, SlotTicker, SlotMessage}

// -----------------------------------------------------------------------------

// Slot is one piece of the display. Value is set when Ready, Reason when Failed.
type Slot struct {
	Status Status
	Value  any
	Reason string
}

// Snapshot is a consistent copy of the client state
type Snapshot struct {
	RequestID string
	Chart     Slot
	Ticker    Slot
	Message   Slot
}

// Series returns the chart points when the chart slot is Ready
func (s Snapshot) Series() []models.MTimeSeriesPoint {
	series, _ := s.Chart.Value.([]models.MTimeSeriesPoint)
	return series
}

// Text returns the value of a string slot
func (s Slot) Text() string {
	text, _ := s.Value.(string)
	return text
}

// Settled reports whether no slot is still loading
func (s Snapshot) Settled() bool {
	return s.Chart.Status != Loading && s.Ticker.Status != Loading && s.Message.Status != Loading
}
