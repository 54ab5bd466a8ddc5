package reasoner

import (
	"context"
	"encoding/json"
	"fmt"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"

	client "github.com/mutablelogic/go-client"
)

const systemPrompt = "You are a market data assistant. When the user names a stock, call the " +
	"available function with its ticker symbol, then answer briefly using the function result."

// OpenAIReasoner asks an OpenAI compatible chat completions endpoint for the
// next step, declaring capabilities as functions.
type OpenAIReasoner struct {
	*client.Client
	Model       string
	Temperature float64
	Logger      *logger.Logger
}

var _ interfaces.IReasoner = (*OpenAIReasoner)(nil)

// -----------------------------------------------------------------------------

func NewOpenAIReasoner(cfg models.MAgentConfig, log *logger.Logger, opts ...client.ClientOpt) (*OpenAIReasoner, error) {
	opts = append(opts,
		client.OptEndpoint(cfg.BaseURL),
		client.OptReqToken(client.Token{Scheme: client.Bearer, Value: cfg.APIKey}),
	)
	c, err := client.New(opts...)
	if err != nil {
		return nil, helpers.NewConfigurationError("openai client", err)
	}
	return &OpenAIReasoner{
		Client:      c,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Logger:      log,
	}, nil
}

// -----------------------------------------------------------------------------

func (r *OpenAIReasoner) Name() string {
	return "openai"
}

// -----------------------------------------------------------------------------

func (r *OpenAIReasoner) Next(ctx context.Context, transcript []models.MTurn, capabilities []models.MCapabilityDecl) (*models.MDecision, error) {
	temperature := r.Temperature
	request := chatRequest{
		Model:       r.Model,
		Messages:    toMessages(transcript),
		Temperature: &temperature,
	}
	for _, c := range capabilities {
		request.Tools = append(request.Tools, toolDef{
			Type: toolTypeFunc,
			Function: functionDef{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  c.Parameters,
			},
		})
	}
	if len(request.Tools) > 0 {
		request.ToolChoice = toolChoiceAuto
	}

	payload, err := client.NewJSONRequest(request)
	if err != nil {
		return nil, err
	}

	var response chatResponse
	if err := r.DoWithContext(ctx, payload, &response, client.OptPath("chat", "completions")); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("model %s returned no choices", r.Model)
	}

	return fromMessage(response.Choices[0].Message), nil
}

// -----------------------------------------------------------------------------

func toMessages(transcript []models.MTurn) []chatMsg {
	prompt := systemPrompt
	messages := []chatMsg{{Role: roleSystem, Content: &prompt}}

	for _, turn := range transcript {
		text := turn.Text
		msg := chatMsg{Role: turn.Role, Content: &text}

		switch turn.Role {
		case models.RoleAssistant:
			if text == "" {
				msg.Content = nil
			}
			for _, inv := range turn.Invocations {
				msg.ToolCalls = append(msg.ToolCalls, toolCall{
					ID:   inv.ID,
					Type: toolTypeFunc,
					Function: functionCall{
						Name:      inv.Name,
						Arguments: string(inv.Arguments),
					},
				})
			}
		case models.RoleTool:
			msg.ToolCallID = turn.CallID
			msg.Name = turn.Name
		}
		messages = append(messages, msg)
	}
	return messages
}

// -----------------------------------------------------------------------------

func fromMessage(msg chatMsg) *models.MDecision {
	decision := &models.MDecision{}
	if msg.Content != nil {
		decision.Final = *msg.Content
	}
	for _, call := range msg.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		decision.Invocations = append(decision.Invocations, models.MInvocation{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return decision
}
