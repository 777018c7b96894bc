package testutil

import (
	"time"

	"finpilot/core"
)

// MessageBuilder constructs conversation messages for tests.
// Example:
//
//	msg := NewMessageBuilder().User("рассчитай ROI").Meta("lang", "ru").Build()
type MessageBuilder struct {
	role    core.Role
	content string
	ts      time.Time
	meta    map[string]any
}

// NewMessageBuilder creates a builder defaulting to a user message.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{role: core.RoleUser, ts: time.Now().UTC()}
}

// User sets role user with the given content (chainable).
func (b *MessageBuilder) User(content string) *MessageBuilder {
	b.role = core.RoleUser
	b.content = content
	return b
}

// Assistant sets role assistant with the given content (chainable).
func (b *MessageBuilder) Assistant(content string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.content = content
	return b
}

// At overrides the timestamp (chainable). Use where ordering matters.
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.ts = ts; return b }

// Meta adds one metadata entry (chainable).
func (b *MessageBuilder) Meta(key string, value any) *MessageBuilder {
	if b.meta == nil {
		b.meta = map[string]any{}
	}
	b.meta[key] = value
	return b
}

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	return core.Message{Role: b.role, Content: b.content, Timestamp: b.ts, Metadata: b.meta}
}
