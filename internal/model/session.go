package model

import "time"

// TurnRole identifies who produced a conversation turn
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one exchange in an authoring dialogue
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// ConversationSession tracks one authoring dialogue until it yields a report
// definition. Completion is terminal: a completed session is read-only and a
// fresh dialogue requires a new session.
type ConversationSession struct {
	ID        string            `json:"id"`
	Turns     []Turn            `json:"turns"`
	Complete  bool              `json:"is_complete"`
	Preview   *ReportDefinition `json:"report_preview,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
