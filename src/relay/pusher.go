package relay

import (
	"context"
	"fmt"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"

	"github.com/pusher/pusher-http-go/v5"
)

// PusherRelay triggers events on hosted Pusher Channels. Browsers and the
// Go Subscriber connect to Pusher directly.
type PusherRelay struct {
	Client  *pusher.Client
	Logger  *logger.Logger
	Metrics *metrics.Collector
}

var _ interfaces.IRelay = (*PusherRelay)(nil)

// -----------------------------------------------------------------------------

func NewPusherRelay(cfg models.MRelayConfig, log *logger.Logger, m *metrics.Collector) *PusherRelay {
	return &PusherRelay{
		Client: &pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
			Secure:  true,
		},
		Logger:  log,
		Metrics: m,
	}
}

// -----------------------------------------------------------------------------

func (p *PusherRelay) Publish(ctx context.Context, channel string, event models.MRelayEvent) error {
	if event.Kind == "" {
		return helpers.NewRelayError("event kind cannot be empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return helpers.NewRelayError("publish cancelled", err)
	}

	// The pusher client JSON-encodes the envelope into the data string
	if err := p.Client.Trigger(channel, event.Kind, EnvelopeOf(event)); err != nil {
		return helpers.NewRelayError(fmt.Sprintf("pusher trigger %s", event.Kind), err)
	}
	p.Metrics.ObservePublish(event.Kind)
	return nil
}
