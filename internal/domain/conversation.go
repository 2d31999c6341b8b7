// Package domain contains core domain types for the descent navigator service.
package domain

import (
	"time"
)

// Conversation is a persisted thread of messages tied to one case and one
// agent action type. Created lazily on the first message of a session.
type Conversation struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	AgentType string    `json:"agent_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a conversation's append-only log. Seq follows
// insertion order; replay always reads oldest first.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall is a structured invocation emitted by the model. Arguments is the
// raw JSON text exactly as emitted; it is parsed only at execution time.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of executing one ToolCall. It references the
// call by identifier and is surfaced transiently to the caller; it is never
// stored as a child of the call.
type ToolResult struct {
	ToolCallID string         `json:"toolCallId"`
	Name       string         `json:"name"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
}
