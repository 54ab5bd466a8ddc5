package models

import "encoding/json"

// Transcript roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// MCapabilityDecl is what the reasoner is told about a capability.
type MCapabilityDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// MInvocation is a capability call requested by the reasoner.
type MInvocation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MTurn is one entry of a run transcript.
type MTurn struct {
	Role        string        `json:"role"`
	Text        string        `json:"text,omitempty"`
	Invocations []MInvocation `json:"invocations,omitempty"`
	CallID      string        `json:"call_id,omitempty"`
	Name        string        `json:"name,omitempty"`
}

// MDecision is the reasoner's answer for one step. No invocations means the
// run is finished and Final holds the answer.
type MDecision struct {
	Invocations []MInvocation `json:"invocations,omitempty"`
	Final       string        `json:"final,omitempty"`
}
