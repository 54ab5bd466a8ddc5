package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// Hub fans frames out to the websocket clients subscribed to a channel.
// Delivery is at-most-once: nothing is buffered for late subscribers and a
// client too slow to keep up is dropped.
type Hub struct {
	Logger  *logger.Logger
	Metrics *metrics.Collector

	clients      map[*Client]struct{}
	register     chan *Client
	unregister   chan *Client
	subscription chan subscription
	direct       chan outbound
	broadcast    chan outbound
	done         chan struct{}

	connected atomic.Int64
	nextID    atomic.Uint64
}

type outbound struct {
	channel string
	client  *Client
	frame   []byte
}

type subscription struct {
	client  *Client
	channel string
	on      bool
}

var _ interfaces.IRelay = (*Hub)(nil)

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger, m *metrics.Collector) *Hub {
	return &Hub{
		Logger:       log,
		Metrics:      m,
		clients:      make(map[*Client]struct{}),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		subscription: make(chan subscription),
		direct:       make(chan outbound),
		broadcast:    make(chan outbound, 256),
		done:         make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Run is the hub loop. It owns every client and subscription until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setConnected()
			client.send <- connectionEstablished(client.socketID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case sub := <-h.subscription:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if !sub.on {
				delete(sub.client.channels, sub.channel)
				continue
			}
			sub.client.channels[sub.channel] = true
			h.trySend(sub.client, subscriptionSucceeded(sub.channel))

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.trySend(msg.client, msg.frame)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.channels[msg.channel] {
					h.trySend(client, msg.frame)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// trySend never blocks the loop; a full buffer disconnects the client
func (h *Hub) trySend(client *Client, frame []byte) {
	select {
	case client.send <- frame:
	default:
		h.Logger.Warning("Client %s too slow, disconnecting", client.socketID)
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setConnected()
}

func (h *Hub) setConnected() {
	h.connected.Store(int64(len(h.clients)))
	h.Metrics.SetSubscribers(len(h.clients))
}

// -----------------------------------------------------------------------------

// Subscribers is the number of connected websocket clients
func (h *Hub) Subscribers() int {
	return int(h.connected.Load())
}

// -----------------------------------------------------------------------------

// Publish encodes event and broadcasts it on channel
func (h *Hub) Publish(ctx context.Context, channel string, event models.MRelayEvent) error {
	frame, err := EncodeEvent(channel, event)
	if err != nil {
		return err
	}
	if err := h.Deliver(ctx, channel, frame); err != nil {
		return err
	}
	h.Metrics.ObservePublish(event.Kind)
	return nil
}

// -----------------------------------------------------------------------------

// Deliver queues an already encoded frame for broadcast
func (h *Hub) Deliver(ctx context.Context, channel string, frame []byte) error {
	select {
	case <-h.done:
		return helpers.NewRelayError("hub is stopped", nil)
	default:
	}

	select {
	case h.broadcast <- outbound{channel: channel, frame: frame}:
		return nil
	case <-h.done:
		return helpers.NewRelayError("hub is stopped", nil)
	case <-ctx.Done():
		return helpers.NewRelayError("publish cancelled", ctx.Err())
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and attaches the connection to the hub
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	id := h.nextID.Add(1)
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		channels: make(map[string]bool),
		socketID: fmt.Sprintf("%d.%d", id, id*7919%1000003),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

func (h *Hub) subscribe(client *Client, channel string, on bool) {
	select {
	case h.subscription <- subscription{client: client, channel: channel, on: on}:
	case <-h.done:
	}
}

// reply sends a protocol frame to one client
func (h *Hub) reply(client *Client, frame []byte) {
	select {
	case h.direct <- outbound{client: client, frame: frame}:
	case <-h.done:
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
