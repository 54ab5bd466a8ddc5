package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-agent/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketAgentError struct {
	Message string
	Cause   error
}

func (e *MarketAgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketAgentError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ MarketAgentError }
type NetworkError struct{ MarketAgentError }
type DatabaseError struct{ MarketAgentError }
type ValidationError struct{ MarketAgentError }
type UpstreamDataError struct{ MarketAgentError }
type OrchestrationError struct{ MarketAgentError }
type RelayError struct{ MarketAgentError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewUpstreamDataError(msg string, cause error) error {
	return &UpstreamDataError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewOrchestrationError(msg string, cause error) error {
	return &OrchestrationError{MarketAgentError{Message: msg, Cause: cause}}
}

func NewRelayError(msg string, cause error) error {
	return &RelayError{MarketAgentError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Error kinds (wire names)
// -----------------------------------------------------------------------------

const (
	KindValidation    = "validation"
	KindUpstreamData  = "upstream_data"
	KindOrchestration = "orchestration"
	KindRelay         = "relay"
	KindConfiguration = "configuration"
	KindInternal      = "internal"
)

// ErrorKind returns the most specific kind found in the error chain.
// Upstream and validation failures win over the orchestration error wrapping them.
func ErrorKind(err error) string {
	var (
		upstream      *UpstreamDataError
		validation    *ValidationError
		relay         *RelayError
		orchestration *OrchestrationError
		configuration *ConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &upstream):
		return KindUpstreamData
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &relay):
		return KindRelay
	case errors.As(err, &orchestration):
		return KindOrchestration
	case errors.As(err, &configuration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts the operation once plus maxRetries times with
// exponential backoff. It stops early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
