package models

// -----------------------------------------------------------------------------
// Relay event kinds
// -----------------------------------------------------------------------------

const (
	EventChart   = "chart"
	EventTicker  = "ticker"
	EventMessage = "message"
	EventError   = "error"
)

// -----------------------------------------------------------------------------
// MRelayEvent is what travels over the relay channel.
// Payload is []MTimeSeriesPoint for chart, string for ticker and message,
// MErrorPayload for error.
// -----------------------------------------------------------------------------

type MRelayEvent struct {
	Kind      string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

type MErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// -----------------------------------------------------------------------------
// MChatRequest is the inbound user request
// -----------------------------------------------------------------------------

type MChatRequest struct {
	Message   string `json:"message" binding:"required"`
	RequestID string `json:"request_id,omitempty" binding:"omitempty,uuid"`
}
