package interfaces

import (
	"context"

	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// IReasoner decides the next step of a run: capability invocations, or a
// final answer when the decision carries none.
// -----------------------------------------------------------------------------

type IReasoner interface {

	// Name returns the reasoner identifier (e.g. "openai", "keyword")
	Name() string

	// -----------------------------------------------------------------------------

	// Next is given the transcript so far and the declared capabilities.
	Next(ctx context.Context, transcript []models.MTurn, capabilities []models.MCapabilityDecl) (*models.MDecision, error)
}
