package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"market-agent/src/helpers"
	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// Wire protocol. Frames follow the Pusher Channels websocket protocol so the
// same clients work against the local hub and hosted Pusher.
// -----------------------------------------------------------------------------

const (
	EventConnectionEstablished = "pusher:connection_established"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventProtocolError         = "pusher:error"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"

	activityTimeoutSeconds = 120
)

// Frame is one websocket message. Server frames carry Data as a JSON encoded
// string; client frames may carry an object.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// envelope is the decoded Data of a relay event frame
type envelope struct {
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// -----------------------------------------------------------------------------

// IsProtocolEvent reports whether name belongs to the transport itself
func IsProtocolEvent(name string) bool {
	return strings.HasPrefix(name, "pusher:") || strings.HasPrefix(name, "pusher_internal:")
}

// -----------------------------------------------------------------------------

// EnvelopeOf returns the object published as Data for event
func EnvelopeOf(event models.MRelayEvent) map[string]any {
	env := map[string]any{"payload": event.Payload}
	if event.RequestID != "" {
		env["request_id"] = event.RequestID
	}
	return env
}

// -----------------------------------------------------------------------------

// EncodeEvent builds the frame broadcast for event on channel
func EncodeEvent(channel string, event models.MRelayEvent) ([]byte, error) {
	if event.Kind == "" {
		return nil, helpers.NewRelayError("event kind cannot be empty", nil)
	}
	inner, err := json.Marshal(EnvelopeOf(event))
	if err != nil {
		return nil, helpers.NewRelayError(fmt.Sprintf("encode %s payload", event.Kind), err)
	}
	return encodeFrame(event.Kind, channel, inner)
}

// -----------------------------------------------------------------------------

func encodeFrame(name string, channel string, data []byte) ([]byte, error) {
	// Pusher sends data as a string holding JSON
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: name, Channel: channel, Data: quoted})
}

// -----------------------------------------------------------------------------

// DataBytes unwraps Data whether it arrived as a JSON string or inline
func (f Frame) DataBytes() ([]byte, error) {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 || data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// -----------------------------------------------------------------------------

// DecodeEvent turns an event frame into a typed relay event. Data without an
// envelope is taken as the bare payload.
func DecodeEvent(f Frame) (models.MRelayEvent, error) {
	event := models.MRelayEvent{Kind: f.Event}

	data, err := f.DataBytes()
	if err != nil {
		return event, helpers.NewRelayError(fmt.Sprintf("bad data in %s frame", f.Event), err)
	}

	payload := json.RawMessage(data)
	var env envelope
	if len(data) > 0 && data[0] == '{' && json.Unmarshal(data, &env) == nil && env.Payload != nil {
		event.RequestID = env.RequestID
		payload = env.Payload
	}

	switch f.Event {
	case models.EventChart:
		var series []models.MTimeSeriesPoint
		err = json.Unmarshal(payload, &series)
		event.Payload = series
	case models.EventTicker, models.EventMessage:
		var text string
		err = json.Unmarshal(payload, &text)
		event.Payload = text
	case models.EventError:
		var e models.MErrorPayload
		err = json.Unmarshal(payload, &e)
		event.Payload = e
	default:
		event.Payload = payload
	}
	if err != nil {
		return event, helpers.NewRelayError(fmt.Sprintf("bad %s payload", f.Event), err)
	}
	return event, nil
}

// -----------------------------------------------------------------------------

func connectionEstablished(socketID string) []byte {
	inner, _ := json.Marshal(map[string]any{"socket_id": socketID, "activity_timeout": activityTimeoutSeconds})
	frame, _ := encodeFrame(EventConnectionEstablished, "", inner)
	return frame
}

func subscriptionSucceeded(channel string) []byte {
	frame, _ := encodeFrame(EventSubscriptionSucceeded, channel, []byte("{}"))
	return frame
}

func pong() []byte {
	frame, _ := json.Marshal(Frame{Event: EventPong, Data: json.RawMessage(`{}`)})
	return frame
}

func protocolError(message string, code int) []byte {
	inner, _ := json.Marshal(map[string]any{"message": message, "code": code})
	frame, _ := json.Marshal(Frame{Event: EventProtocolError, Data: inner})
	return frame
}
