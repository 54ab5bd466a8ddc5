package agent

import (
	"context"
	"fmt"
	"time"

	"market-agent/src/capability"
	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"
)

const DefaultMaxSteps = 5

// Observer sees every capability result as soon as its invocation resolves.
// Returning an error aborts the run.
type Observer func(ctx context.Context, invocation models.MInvocation, result capability.Result) error

// -----------------------------------------------------------------------------

// Orchestrator drives a reasoner through capability invocations until it
// produces a final answer.
type Orchestrator struct {
	Reasoner interfaces.IReasoner
	Registry *capability.Registry
	MaxSteps int
	Logger   *logger.Logger
	Metrics  *metrics.Collector
}

func NewOrchestrator(reasoner interfaces.IReasoner, registry *capability.Registry, maxSteps int, log *logger.Logger, m *metrics.Collector) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Orchestrator{
		Reasoner: reasoner,
		Registry: registry,
		MaxSteps: maxSteps,
		Logger:   log,
		Metrics:  m,
	}
}

// -----------------------------------------------------------------------------

// Run executes one request. Invocations run sequentially; each summary is
// appended to the transcript before the reasoner is asked again. Any failure
// aborts with an OrchestrationError wrapping the cause.
func (o *Orchestrator) Run(ctx context.Context, request string, observer Observer) (final string, err error) {
	started := time.Now()
	defer func() { o.Metrics.ObserveRun(started, err) }()

	decls, err := o.Registry.Declarations()
	if err != nil {
		return "", helpers.NewOrchestrationError("declaring capabilities", err)
	}

	transcript := []models.MTurn{{Role: models.RoleUser, Text: request}}

	for step := 1; step <= o.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", helpers.NewOrchestrationError("run cancelled", err)
		}

		decision, err := o.Reasoner.Next(ctx, transcript, decls)
		if err != nil {
			return "", helpers.NewOrchestrationError(fmt.Sprintf("reasoner %s failed at step %d", o.Reasoner.Name(), step), err)
		}
		if decision == nil {
			return "", helpers.NewOrchestrationError(fmt.Sprintf("reasoner %s returned no decision", o.Reasoner.Name()), nil)
		}

		if len(decision.Invocations) == 0 {
			o.Logger.Debug("Run finished after %d step(s)", step)
			return decision.Final, nil
		}

		transcript = append(transcript, models.MTurn{
			Role:        models.RoleAssistant,
			Text:        decision.Final,
			Invocations: decision.Invocations,
		})

		for _, inv := range decision.Invocations {
			o.Logger.Info("Step %d: invoking %s %s", step, inv.Name, string(inv.Arguments))

			result, err := o.Registry.Invoke(ctx, inv.Name, inv.Arguments)
			o.Metrics.ObserveInvocation(inv.Name, err)
			if err != nil {
				return "", helpers.NewOrchestrationError(fmt.Sprintf("capability %s failed", inv.Name), err)
			}

			if observer != nil {
				if err := observer(ctx, inv, result); err != nil {
					return "", helpers.NewOrchestrationError(fmt.Sprintf("delivering %s result", inv.Name), err)
				}
			}

			transcript = append(transcript, models.MTurn{
				Role:   models.RoleTool,
				Text:   result.Summary(),
				CallID: inv.ID,
				Name:   inv.Name,
			})
		}
	}

	return "", helpers.NewOrchestrationError(fmt.Sprintf("no final answer after %d steps", o.MaxSteps), nil)
}
