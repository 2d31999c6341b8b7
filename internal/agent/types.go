// Package agent implements the AI case-assistant orchestration core: the
// chat endpoint, the streaming relay against the chat-completion service,
// and concurrent tool execution against case records.
package agent

import (
	"github.com/romanwi-dev/pl-descent-navigator/internal/domain"
)

// Action identifiers accepted by the chat endpoint. Each action selects a
// system prompt, a context projection, and (for some) the tool registry.
const (
	ActionEligibilityAnalysis   = "eligibility_analysis"
	ActionDocumentReview        = "document_review"
	ActionTaskSuggestions       = "task_suggestions"
	ActionComprehensiveAnalysis = "comprehensive_analysis"
	ActionAutoPopulateOBY       = "auto_populate_oby"
	ActionWSCResponse           = "wsc_response"
	ActionSecurityAudit         = "security_audit"
)

// toolEligibleActions is the fixed allow-list of actions that receive the
// tool registry and tool_choice=auto on the model call.
var toolEligibleActions = map[string]bool{
	ActionComprehensiveAnalysis: true,
	ActionTaskSuggestions:       true,
	ActionDocumentReview:        true,
	ActionAutoPopulateOBY:       true,
	ActionWSCResponse:           true,
}

// ChatRequest is the inbound agent request body.
type ChatRequest struct {
	CaseID         string `json:"caseId,omitempty"`
	Prompt         string `json:"prompt"`
	Action         string `json:"action"`
	ConversationID string `json:"conversationId,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming response payload. ConversationID is null
// when the request was not associated with a conversation.
type ChatResponse struct {
	Response       string              `json:"response"`
	ConversationID *string             `json:"conversationId"`
	ToolResults    []domain.ToolResult `json:"toolResults"`
}

// chatRequestSchema is the validation gate applied to the raw request body
// before any side effect occurs.
const chatRequestSchema = `{
	"type": "object",
	"properties": {
		"caseId": {"type": "string", "minLength": 1},
		"prompt": {"type": "string", "minLength": 1},
		"action": {"type": "string", "minLength": 1},
		"conversationId": {"type": "string", "minLength": 1},
		"stream": {"type": "boolean"}
	},
	"required": ["prompt", "action"],
	"additionalProperties": false
}`
