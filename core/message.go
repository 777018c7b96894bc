package core

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks messages authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by the assistant.
	RoleAssistant Role = "assistant"
	// RoleSystem marks instruction messages injected by the system.
	RoleSystem Role = "system"
	// RoleTool marks messages carrying tool execution output.
	RoleTool Role = "tool"
)

// Message is a single conversation record. Messages are immutable once
// created and are appended in arrival order per user.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a Message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// WithMetadata returns a copy of the message carrying the given metadata map.
func (m Message) WithMetadata(meta map[string]any) Message {
	m.Metadata = meta
	return m
}
