package reconciler

import (
	"context"
	"io"
	"testing"
	"time"

	"market-agent/src/logger"
	"market-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var series = []models.MTimeSeriesPoint{
	{Date: "2024-01-02", Value: 185.64},
	{Date: "2024-01-03", Value: 184.25},
	{Date: "2024-01-04", Value: 181.91},
	{Date: "2024-01-05", Value: 181.18},
	{Date: "2024-01-08", Value: 185.56},
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestReconciler(timeout time.Duration) (*Reconciler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)}
	r := NewReconciler(timeout, logger.NewLoggerWithWriter(io.Discard, "ERROR", "reconciler"))
	r.Now = clock.Now
	return r, clock
}

func TestInitialStateIsIdle(t *testing.T) {
	r, _ := newTestReconciler(0)
	snap := r.Snapshot()
	assert.Equal(t, Idle, snap.Chart.Status)
	assert.Equal(t, Idle, snap.Ticker.Status)
	assert.Equal(t, Idle, snap.Message.Status)
	assert.True(t, snap.Settled())
}

func TestSubmitResetsEverySlot(t *testing.T) {
	r, _ := newTestReconciler(0)
	first := r.Submit()
	r.Receive(models.MRelayEvent{Kind: models.EventTicker, RequestID: first, Payload: "AAPL"})

	second := r.Submit()
	assert.NotEqual(t, first, second)

	snap := r.Snapshot()
	assert.Equal(t, second, snap.RequestID)
	for _, slot := range []Slot{snap.Chart, snap.Ticker, snap.Message} {
		assert.Equal(t, Loading, slot.Status)
		assert.Nil(t, slot.Value)
	}
	assert.False(t, snap.Settled())
}

func TestFullRunFillsAllSlots(t *testing.T) {
	r, _ := newTestReconciler(0)
	id := r.Submit()

	r.Receive(models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series})
	r.Receive(models.MRelayEvent{Kind: models.EventTicker, RequestID: id, Payload: "AAPL"})
	r.Receive(models.MRelayEvent{Kind: models.EventMessage, RequestID: id, Payload: `{"date":"2024-01-08","value":185.56}`})

	snap := r.Snapshot()
	assert.Equal(t, Ready, snap.Chart.Status)
	assert.Equal(t, series, snap.Series())
	assert.Equal(t, "AAPL", snap.Ticker.Text())
	assert.Equal(t, `{"date":"2024-01-08","value":185.56}`, snap.Message.Text())
	assert.True(t, snap.Settled())
}

func TestSlotsAreIndependent(t *testing.T) {
	r, _ := newTestReconciler(0)
	id := r.Submit()

	r.Receive(models.MRelayEvent{Kind: models.EventMessage, RequestID: id, Payload: "done"})
	snap := r.Snapshot()
	assert.Equal(t, Ready, snap.Message.Status)
	assert.Equal(t, Loading, snap.Chart.Status)
	assert.Equal(t, Loading, snap.Ticker.Status)
}

func TestLastWriteWins(t *testing.T) {
	r, _ := newTestReconciler(0)
	id := r.Submit()

	r.Receive(models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series[:2]})
	r.Receive(models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series})
	assert.Equal(t, series, r.Snapshot().Series())
}

func TestIgnoresOtherRequests(t *testing.T) {
	r, _ := newTestReconciler(0)
	r.Submit()

	assert.False(t, r.Receive(models.MRelayEvent{Kind: models.EventTicker, RequestID: "someone-else", Payload: "MSFT"}))
	assert.Equal(t, Loading, r.Snapshot().Ticker.Status)

	assert.True(t, r.Receive(models.MRelayEvent{Kind: models.EventTicker, Payload: "AAPL"}), "events without id are accepted")
	assert.Equal(t, "AAPL", r.Snapshot().Ticker.Text())
}

func TestErrorEventFailsLoadingSlots(t *testing.T) {
	r, _ := newTestReconciler(0)
	id := r.Submit()
	r.Receive(models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series})

	r.Receive(models.MRelayEvent{Kind: models.EventError, RequestID: id, Payload: models.MErrorPayload{Kind: "upstream_data", Message: "rate limited"}})
	snap := r.Snapshot()
	assert.Equal(t, Ready, snap.Chart.Status, "ready slots keep their value")
	assert.Equal(t, Failed, snap.Ticker.Status)
	assert.Equal(t, "rate limited", snap.Ticker.Reason)
	assert.Equal(t, Failed, snap.Message.Status)
}

func TestNoEventsStaysLoadingWithoutTimeout(t *testing.T) {
	r, clock := newTestReconciler(0)
	r.Submit()

	clock.now = clock.now.Add(24 * time.Hour)
	assert.False(t, r.Expire(clock.now))
	assert.Equal(t, Loading, r.Snapshot().Chart.Status)
}

func TestExpireAfterDeadline(t *testing.T) {
	r, clock := newTestReconciler(10 * time.Second)
	id := r.Submit()
	r.Receive(models.MRelayEvent{Kind: models.EventTicker, RequestID: id, Payload: "AAPL"})

	assert.False(t, r.Expire(clock.now.Add(9*time.Second)))
	assert.True(t, r.Expire(clock.now.Add(10*time.Second)))

	snap := r.Snapshot()
	assert.Equal(t, Failed, snap.Chart.Status)
	assert.Equal(t, timedOutReason, snap.Chart.Reason)
	assert.Equal(t, Ready, snap.Ticker.Status)

	// late events for the same request still land
	r.Receive(models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series})
	assert.Equal(t, Ready, r.Snapshot().Chart.Status)
}

func TestChangedSignals(t *testing.T) {
	r, _ := newTestReconciler(0)
	r.Submit()
	select {
	case <-r.Changed():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestRunConsumesStream(t *testing.T) {
	r, _ := newTestReconciler(0)
	id := r.Submit()

	events := make(chan models.MRelayEvent, 3)
	events <- models.MRelayEvent{Kind: models.EventChart, RequestID: id, Payload: series}
	events <- models.MRelayEvent{Kind: models.EventTicker, RequestID: id, Payload: "AAPL"}
	events <- models.MRelayEvent{Kind: models.EventMessage, RequestID: id, Payload: "done"}
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return r.Snapshot().Settled()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "done", r.Snapshot().Message.Text())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after ctx ended")
	}
}

func TestRunExpiresWhileWaiting(t *testing.T) {
	r := NewReconciler(50*time.Millisecond, logger.NewLoggerWithWriter(io.Discard, "ERROR", "reconciler"))
	r.Submit()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, make(chan models.MRelayEvent))

	require.Eventually(t, func() bool {
		return r.Snapshot().Message.Status == Failed
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRunExpiresAfterStreamCloses(t *testing.T) {
	r := NewReconciler(50*time.Millisecond, logger.NewLoggerWithWriter(io.Discard, "ERROR", "reconciler"))
	r.Submit()

	events := make(chan models.MRelayEvent)
	close(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, events)

	require.Eventually(t, func() bool {
		snap := r.Snapshot()
		return snap.Chart.Status == Failed && snap.Ticker.Status == Failed && snap.Message.Status == Failed
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "timed out", r.Snapshot().Chart.Reason)
}
