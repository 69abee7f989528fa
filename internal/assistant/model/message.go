package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageState is the two-phase lifecycle of an assistant message.
// User messages are created Resolved.
type MessageState string

const (
	MessagePending  MessageState = "pending"
	MessageResolved MessageState = "resolved"
	MessageFailed   MessageState = "failed"
)

type Message struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Text      string       `json:"text"`
	ToolID    string       `json:"toolId,omitempty"`
	Result    *Result      `json:"result,omitempty"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	SettledAt *time.Time   `json:"settledAt,omitempty"`
}

func (m *Message) IsPending() bool {
	return m != nil && m.State == MessagePending
}
