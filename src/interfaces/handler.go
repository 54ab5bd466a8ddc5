package interfaces

import (
	"context"

	"market-agent/src/models"
)

// -----------------------------------------------------------------------------
// IChatHandler runs one user message to completion and returns its request
// id. Transports (HTTP, gRPC) only bind requests to it.
// -----------------------------------------------------------------------------

type IChatHandler interface {
	Handle(ctx context.Context, req models.MChatRequest) (string, error)
}
