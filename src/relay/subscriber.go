package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/logger"
	"market-agent/src/models"

	"github.com/gorilla/websocket"
)

// Subscriber is a websocket client for one relay channel. It speaks the same
// protocol against the local hub and against hosted Pusher.
type Subscriber struct {
	Channel string
	Logger  *logger.Logger

	conn     *websocket.Conn
	events   chan models.MRelayEvent
	done     chan struct{}
	once     sync.Once
	writeMu  sync.Mutex
	errMu    sync.Mutex
	err      error
	socketID string
}

// PusherURL is the websocket endpoint of a hosted Pusher app
func PusherURL(key, cluster string) string {
	return fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=7&client=market-agent&version=1.0", cluster, url.PathEscape(key))
}

// -----------------------------------------------------------------------------

// Subscribe connects, joins channel and waits for the confirmation. Events
// published before it returns are not seen.
func Subscribe(ctx context.Context, wsURL string, channel string, log *logger.Logger) (*Subscriber, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, helpers.NewRelayError(fmt.Sprintf("dial %s", wsURL), err)
	}

	s := &Subscriber{
		Channel: channel,
		Logger:  log,
		conn:    conn,
		events:  make(chan models.MRelayEvent, 64),
		done:    make(chan struct{}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	go s.readLoop()
	return s, nil
}

// -----------------------------------------------------------------------------

func (s *Subscriber) handshake() error {
	frame, err := s.readFrame()
	if err != nil {
		return helpers.NewRelayError("waiting for connection", err)
	}
	if frame.Event != EventConnectionEstablished {
		return helpers.NewRelayError(fmt.Sprintf("unexpected first frame %q", frame.Event), nil)
	}
	if data, err := frame.DataBytes(); err == nil {
		var established struct {
			SocketID string `json:"socket_id"`
		}
		if json.Unmarshal(data, &established) == nil {
			s.socketID = established.SocketID
		}
	}

	subscribe, _ := json.Marshal(map[string]any{
		"event": EventSubscribe,
		"data":  map[string]string{"channel": s.Channel},
	})
	if err := s.write(subscribe); err != nil {
		return helpers.NewRelayError("sending subscribe", err)
	}

	for {
		frame, err := s.readFrame()
		if err != nil {
			return helpers.NewRelayError("waiting for subscription", err)
		}
		switch frame.Event {
		case EventSubscriptionSucceeded:
			if frame.Channel == s.Channel {
				return nil
			}
		case EventProtocolError:
			data, _ := frame.DataBytes()
			return helpers.NewRelayError(fmt.Sprintf("subscription refused: %s", data), nil)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Subscriber) readFrame() (Frame, error) {
	message, err := s.readMessage()
	if err != nil {
		return Frame{}, err
	}
	return decodeFrame(message)
}

func (s *Subscriber) readMessage() ([]byte, error) {
	_, message, err := s.conn.ReadMessage()
	return message, err
}

func decodeFrame(message []byte) (Frame, error) {
	var frame Frame
	err := json.Unmarshal(message, &frame)
	return frame, err
}

func (s *Subscriber) write(message []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// -----------------------------------------------------------------------------

func (s *Subscriber) readLoop() {
	defer close(s.events)

	for {
		message, err := s.readMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		frame, err := decodeFrame(message)
		if err != nil {
			s.Logger.Warning("Skipping malformed frame: %v", err)
			continue
		}

		switch {
		case frame.Event == EventPing:
			if err := s.write(pong()); err != nil {
				s.setErr(err)
				return
			}
		case IsProtocolEvent(frame.Event):
		case frame.Channel != "" && frame.Channel != s.Channel:
		default:
			event, err := DecodeEvent(frame)
			if err != nil {
				s.Logger.Warning("Skipping %s event: %v", frame.Event, err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Events yields decoded events in arrival order. It is closed when the
// connection ends; Err tells why.
func (s *Subscriber) Events() <-chan models.MRelayEvent {
	return s.events
}

func (s *Subscriber) SocketID() string {
	return s.socketID
}

func (s *Subscriber) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscriber) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// -----------------------------------------------------------------------------

// Close sends a close frame and drops the connection
func (s *Subscriber) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}
