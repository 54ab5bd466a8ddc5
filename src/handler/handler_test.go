package handler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"market-agent/src/agent"
	"market-agent/src/capability"
	"market-agent/src/helpers"
	"market-agent/src/logger"
	"market-agent/src/models"
	"market-agent/src/reasoner"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRelay struct {
	mu     sync.Mutex
	events []models.MRelayEvent
	fail   map[string]error
}

func (r *recordingRelay) Publish(_ context.Context, channel string, event models.MRelayEvent) error {
	if err := r.fail[event.Kind]; err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingRelay) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type stubProvider struct {
	series []models.MTimeSeriesPoint
	err    error
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) FetchDaily(context.Context, string) ([]models.MTimeSeriesPoint, error) {
	return p.series, p.err
}

var fivePoints = []models.MTimeSeriesPoint{
	{Date: "2024-01-02", Value: 185.64},
	{Date: "2024-01-03", Value: 184.25},
	{Date: "2024-01-04", Value: 181.91},
	{Date: "2024-01-05", Value: 181.18},
	{Date: "2024-01-08", Value: 185.56},
}

func quietLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(io.Discard, "ERROR", "handler")
}

func newHandler(t *testing.T, p *stubProvider, relay *recordingRelay) *Handler {
	reg, err := capability.NewRegistry(capability.NewFetchHistoricalData(p))
	require.NoError(t, err)
	orch := agent.NewOrchestrator(reasoner.NewKeywordReasoner(), reg, 5, quietLogger(), nil)
	return &Handler{Runner: orch, Relay: relay, Channel: "channel-1", PublishErrors: true, Logger: quietLogger()}
}

// -----------------------------------------------------------------------------

func TestHandlePublishesChartTickerMessage(t *testing.T) {
	relay := &recordingRelay{}
	h := newHandler(t, &stubProvider{series: fivePoints}, relay)

	id, err := h.Handle(context.Background(), models.MChatRequest{Message: "show me AAPL"})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated request id is a uuid")

	require.Equal(t, []string{"chart", "ticker", "message"}, relay.kinds())
	assert.Equal(t, fivePoints, relay.events[0].Payload)
	assert.Equal(t, "AAPL", relay.events[1].Payload)
	assert.JSONEq(t, `{"date":"2024-01-08","value":185.56}`, relay.events[2].Payload.(string))
	for _, e := range relay.events {
		assert.Equal(t, id, e.RequestID)
	}
}

func TestHandleKeepsCallerRequestID(t *testing.T) {
	relay := &recordingRelay{}
	h := newHandler(t, &stubProvider{series: fivePoints}, relay)

	const callerID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	id, err := h.Handle(context.Background(), models.MChatRequest{Message: "AAPL please", RequestID: callerID})
	require.NoError(t, err)
	assert.Equal(t, callerID, id)
	assert.Equal(t, callerID, relay.events[0].RequestID)
}

func TestHandleRejectsEmptyMessage(t *testing.T) {
	relay := &recordingRelay{}
	h := newHandler(t, &stubProvider{series: fivePoints}, relay)

	_, err := h.Handle(context.Background(), models.MChatRequest{Message: "   "})
	var validation *helpers.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.events)
}

func TestHandleRejectsMalformedRequestID(t *testing.T) {
	relay := &recordingRelay{}
	h := newHandler(t, &stubProvider{series: fivePoints}, relay)

	for _, id := range []string{"req-42", "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8"} {
		got, err := h.Handle(context.Background(), models.MChatRequest{Message: "show me AAPL", RequestID: id})
		var validation *helpers.ValidationError
		assert.ErrorAs(t, err, &validation, id)
		assert.Empty(t, got, id)
	}
	assert.Empty(t, relay.events)
}

func TestHandleUpstreamFailurePublishesErrorEvent(t *testing.T) {
	relay := &recordingRelay{}
	upstream := helpers.NewUpstreamDataError("no time series in response", nil)
	h := newHandler(t, &stubProvider{err: upstream}, relay)

	id, err := h.Handle(context.Background(), models.MChatRequest{Message: "show me AAPL"})
	require.Error(t, err)
	assert.Equal(t, helpers.KindUpstreamData, helpers.ErrorKind(err))

	require.Equal(t, []string{"error"}, relay.kinds())
	payload := relay.events[0].Payload.(models.MErrorPayload)
	assert.Equal(t, helpers.KindUpstreamData, payload.Kind)
	assert.Contains(t, payload.Message, "no time series")
	assert.Equal(t, id, relay.events[0].RequestID)
}

func TestHandleFailureWithoutErrorEvents(t *testing.T) {
	relay := &recordingRelay{}
	h := newHandler(t, &stubProvider{err: helpers.NewUpstreamDataError("bad body", nil)}, relay)
	h.PublishErrors = false

	_, err := h.Handle(context.Background(), models.MChatRequest{Message: "show me AAPL"})
	require.Error(t, err)
	assert.Empty(t, relay.events, "the client is left loading")
}

func TestHandleRelayFailureAbortsRun(t *testing.T) {
	relay := &recordingRelay{fail: map[string]error{"ticker": helpers.NewRelayError("down", nil)}}
	h := newHandler(t, &stubProvider{series: fivePoints}, relay)

	_, err := h.Handle(context.Background(), models.MChatRequest{Message: "show me AAPL"})
	require.Error(t, err)
	assert.Equal(t, []string{"chart", "error"}, relay.kinds())
	assert.Equal(t, helpers.KindRelay, relay.events[1].Payload.(models.MErrorPayload).Kind)
}

// -----------------------------------------------------------------------------

// funcRunner lets a test drive the observer directly
type funcRunner func(ctx context.Context, request string, observer agent.Observer) (string, error)

func (f funcRunner) Run(ctx context.Context, request string, observer agent.Observer) (string, error) {
	return f(ctx, request, observer)
}

func TestHandlePublishesEveryDuplicateResult(t *testing.T) {
	relay := &recordingRelay{}
	first := &capability.SeriesResult{Ticker: "AAPL", Series: fivePoints[:2]}
	second := &capability.SeriesResult{Ticker: "AAPL", Series: fivePoints}

	runner := funcRunner(func(ctx context.Context, _ string, observer agent.Observer) (string, error) {
		for _, r := range []*capability.SeriesResult{first, second} {
			if err := observer(ctx, models.MInvocation{Name: capability.FetchHistoricalName}, r); err != nil {
				return "", err
			}
		}
		return "done", nil
	})
	h := &Handler{Runner: runner, Relay: relay, Channel: "channel-1", Logger: quietLogger()}

	_, err := h.Handle(context.Background(), models.MChatRequest{Message: "AAPL twice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chart", "ticker", "chart", "ticker", "message"}, relay.kinds())
	assert.Equal(t, fivePoints, relay.events[2].Payload)
}

func TestHandleIsDetachedFromCaller(t *testing.T) {
	relay := &recordingRelay{}
	runner := funcRunner(func(ctx context.Context, _ string, _ agent.Observer) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return "finished", nil
		}
	})
	h := &Handler{Runner: runner, Relay: relay, Channel: "channel-1", Logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Handle(ctx, models.MChatRequest{Message: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"message"}, relay.kinds())
}

func TestHandleRunTimeout(t *testing.T) {
	relay := &recordingRelay{}
	runner := funcRunner(func(ctx context.Context, _ string, _ agent.Observer) (string, error) {
		<-ctx.Done()
		return "", helpers.NewOrchestrationError("run cancelled", ctx.Err())
	})
	h := &Handler{Runner: runner, Relay: relay, Channel: "channel-1", PublishErrors: true, RunTimeout: 10 * time.Millisecond, Logger: quietLogger()}

	_, err := h.Handle(context.Background(), models.MChatRequest{Message: "AAPL"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, []string{"error"}, relay.kinds())
}

func TestNewHandlerFromConfig(t *testing.T) {
	cfg := &models.MConfig{
		Relay: models.MRelayConfig{Channel: "desk", PublishErrors: true},
		Agent: models.MAgentConfig{RunTimeoutSeconds: 30},
	}
	h := NewHandler(nil, &recordingRelay{}, cfg, quietLogger())
	assert.Equal(t, "desk", h.Channel)
	assert.True(t, h.PublishErrors)
	assert.Equal(t, 30*time.Second, h.RunTimeout)
}
