package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-agent/src/agent"
	"market-agent/src/capability"
	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"

	"github.com/google/uuid"
)

// errorPublishTimeout bounds the error event sent after a failed run, whose
// own context may already be done.
const errorPublishTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

// Runner is the part of the orchestrator the handler needs
type Runner interface {
	Run(ctx context.Context, request string, observer agent.Observer) (string, error)
}

// Handler turns one inbound message into one orchestrator run and publishes
// what the run produces on the relay channel. It holds no per-request state.
type Handler struct {
	Runner        Runner
	Relay         interfaces.IRelay
	Channel       string
	PublishErrors bool
	RunTimeout    time.Duration
	Logger        *logger.Logger
}

func NewHandler(runner Runner, relay interfaces.IRelay, cfg *models.MConfig, log *logger.Logger) *Handler {
	return &Handler{
		Runner:        runner,
		Relay:         relay,
		Channel:       cfg.Relay.Channel,
		PublishErrors: cfg.Relay.PublishErrors,
		RunTimeout:    time.Duration(cfg.Agent.RunTimeoutSeconds) * time.Second,
		Logger:        log,
	}
}

// -----------------------------------------------------------------------------

// Handle runs the request to completion and returns its request id. The run
// is not cancelled when ctx is; only RunTimeout bounds it.
func (h *Handler) Handle(ctx context.Context, req models.MChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", helpers.NewValidationError("message cannot be empty", nil)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	} else if !validRequestID(requestID) {
		return "", helpers.NewValidationError(fmt.Sprintf("request id %q is not a uuid", requestID), nil)
	}

	runCtx := context.WithoutCancel(ctx)
	if h.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, h.RunTimeout)
		defer cancel()
	}

	h.Logger.Info("Run %s started: %q", requestID, req.Message)
	started := time.Now()

	final, err := h.Runner.Run(runCtx, req.Message, h.observer(requestID))
	if err == nil {
		err = h.publish(runCtx, requestID, models.EventMessage, final)
	}
	if err != nil {
		h.Logger.Error("Run %s failed after %s: %v", requestID, time.Since(started).Round(time.Millisecond), err)
		h.publishFailure(ctx, requestID, err)
		return requestID, err
	}

	h.Logger.Info("Run %s finished in %s", requestID, time.Since(started).Round(time.Millisecond))
	return requestID, nil
}

// -----------------------------------------------------------------------------

// observer publishes chart then ticker for every series a capability returns
func (h *Handler) observer(requestID string) agent.Observer {
	return func(ctx context.Context, invocation models.MInvocation, result capability.Result) error {
		series, ok := result.(*capability.SeriesResult)
		if !ok {
			h.Logger.Debug("Run %s: %s result is not published", requestID, invocation.Name)
			return nil
		}
		if err := h.publish(ctx, requestID, models.EventChart, series.Series); err != nil {
			return err
		}
		return h.publish(ctx, requestID, models.EventTicker, series.Ticker)
	}
}

func (h *Handler) publish(ctx context.Context, requestID string, kind string, payload any) error {
	err := h.Relay.Publish(ctx, h.Channel, models.MRelayEvent{Kind: kind, RequestID: requestID, Payload: payload})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", kind, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (h *Handler) publishFailure(ctx context.Context, requestID string, runErr error) {
	if !h.PublishErrors {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorPublishTimeout)
	defer cancel()

	payload := models.MErrorPayload{Kind: helpers.ErrorKind(runErr), Message: runErr.Error()}
	if err := h.publish(pubCtx, requestID, models.EventError, payload); err != nil {
		h.Logger.Warning("Run %s: error event not delivered: %v", requestID, err)
	}
}

// -----------------------------------------------------------------------------

// validRequestID accepts the canonical 36 character form only, matching the
// HTTP binding
func validRequestID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}
