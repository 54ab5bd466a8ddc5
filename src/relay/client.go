package relay

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one websocket connection attached to the hub. channels is only
// touched by the hub loop.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool
	socketID string
}

// -----------------------------------------------------------------------------
// readPump - handles protocol frames from the client
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
		c.hub.Logger.Debug("Client %s disconnected", c.socketID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(message)
	}
}

// -----------------------------------------------------------------------------

func (c *Client) handle(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.reply(protocolError("malformed frame", 4000))
		return
	}

	switch frame.Event {
	case EventSubscribe, EventUnsubscribe:
		data, err := frame.DataBytes()
		var body struct {
			Channel string `json:"channel"`
		}
		if err != nil || json.Unmarshal(data, &body) != nil || body.Channel == "" {
			c.reply(protocolError("subscribe needs a channel", 4000))
			return
		}
		c.hub.subscribe(c, body.Channel, frame.Event == EventSubscribe)

	case EventPing:
		c.reply(pong())

	default:
		// client events are not relayed
	}
}

// -----------------------------------------------------------------------------

// reply goes through the hub, which owns the send channel
func (c *Client) reply(frame []byte) {
	c.hub.reply(c, frame)
}

// -----------------------------------------------------------------------------
// writePump - sends frames to the client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
