package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"market-agent/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer completes the subscription handshake, then writes frames
// verbatim and keeps the connection open until the client leaves.
func scriptedServer(t *testing.T, channel string, frames ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if conn.WriteMessage(websocket.TextMessage, connectionEstablished("1.1")) != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if conn.WriteMessage(websocket.TextMessage, subscriptionSucceeded(channel)) != nil {
			return
		}
		for _, f := range frames {
			if conn.WriteMessage(websocket.TextMessage, []byte(f)) != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscriberSkipsUndecodableFrames(t *testing.T) {
	ticker, err := EncodeEvent("channel-1", models.MRelayEvent{Kind: models.EventTicker, RequestID: "r1", Payload: "AAPL"})
	require.NoError(t, err)

	wsURL := scriptedServer(t, "channel-1", `[]`, `"x"`, `42`, `{not json`, string(ticker))
	sub := subscribe(t, wsURL, "channel-1")

	event := next(t, sub)
	assert.Equal(t, models.EventTicker, event.Kind)
	assert.Equal(t, "AAPL", event.Payload)
	assert.NoError(t, sub.Err())
}
