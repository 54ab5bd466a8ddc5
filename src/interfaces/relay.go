package interfaces

import (
	"context"

	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// IRelay publishes events to every current subscriber of a channel.
// Delivery is best-effort and at-most-once.
// -----------------------------------------------------------------------------

type IRelay interface {
	Publish(ctx context.Context, channel string, event models.MRelayEvent) error
}
