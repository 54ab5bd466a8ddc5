package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"market-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerBody struct {
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
	Data     string   `json:"data"`
}

func TestPusherRelayTriggers(t *testing.T) {
	var (
		mu       sync.Mutex
		triggers []triggerBody
		paths    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body triggerBody
		assert.NoError(t, json.Unmarshal(raw, &body))

		mu.Lock()
		triggers = append(triggers, body)
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	p := NewPusherRelay(models.MRelayConfig{AppID: "123", Key: "key", Secret: "secret", Cluster: "eu"}, testLogger(), nil)
	p.Client.Host = strings.TrimPrefix(srv.URL, "http://")
	p.Client.Secure = false

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, "channel-1", models.MRelayEvent{Kind: models.EventTicker, RequestID: "r1", Payload: "AAPL"}))
	require.NoError(t, p.Publish(ctx, "channel-1", models.MRelayEvent{Kind: models.EventError, RequestID: "r1", Payload: models.MErrorPayload{Kind: "upstream_data", Message: "no data"}}))

	require.Len(t, triggers, 2)
	assert.Equal(t, "/apps/123/events", paths[0])
	assert.Equal(t, "ticker", triggers[0].Name)
	assert.Equal(t, []string{"channel-1"}, triggers[0].Channels)

	// what a websocket client would receive decodes back to the same event
	frame := Frame{Event: triggers[1].Name, Channel: "channel-1"}
	frame.Data, _ = json.Marshal(triggers[1].Data)
	event, err := DecodeEvent(frame)
	require.NoError(t, err)
	assert.Equal(t, "r1", event.RequestID)
	assert.Equal(t, models.MErrorPayload{Kind: "upstream_data", Message: "no data"}, event.Payload)
}

func TestPusherRelayRejectsEmptyKind(t *testing.T) {
	p := NewPusherRelay(models.MRelayConfig{AppID: "1", Key: "k", Secret: "s", Cluster: "eu"}, testLogger(), nil)
	err := p.Publish(context.Background(), "channel-1", models.MRelayEvent{Payload: "x"})
	assert.Error(t, err)
}

func TestPusherRelayHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewPusherRelay(models.MRelayConfig{AppID: "1", Key: "k", Secret: "s"}, testLogger(), nil)
	p.Client.Host = strings.TrimPrefix(srv.URL, "http://")
	p.Client.Secure = false

	err := p.Publish(context.Background(), "channel-1", models.MRelayEvent{Kind: models.EventTicker, Payload: "AAPL"})
	assert.Error(t, err)
}
