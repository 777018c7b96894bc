// Package conversation keeps per-user dialog history in the resilient store.
// History is an append-only list under one key per user; readers always get
// messages oldest first so prompts can be assembled by simple iteration.
package conversation

import (
	"context"
	"encoding/json"

	"finpilot/core"
	"finpilot/logging"
	"finpilot/store"
)

// DefaultRecentLimit is how many trailing messages Recent returns when the
// caller passes a non-positive limit.
const DefaultRecentLimit = 8

// Manager reads and writes dialog history. All operations inherit the
// store's no-error contract: a degraded store means history quietly lives in
// process memory until restart.
type Manager struct {
	store  *store.Resilient
	logger logging.Logger
}

// ManagerOptions configure a conversation Manager.
type ManagerOptions struct {
	Logger logging.Logger
}

// NewManager constructs a Manager over the resilient store.
func NewManager(st *store.Resilient, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Manager{store: st, logger: opts.Logger}
}

func historyKey(userID string) string { return "dialog:" + userID }

// Append records one message at the end of the user's history.
func (m *Manager) Append(ctx context.Context, userID string, msg core.Message) {
	m.store.PushItem(ctx, historyKey(userID), msg)
}

// Recent returns up to limit trailing messages, oldest first. Entries that no
// longer decode are skipped.
func (m *Manager) Recent(ctx context.Context, userID string, limit int) []core.Message {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	items := m.store.FetchTail(ctx, historyKey(userID), limit)
	messages := make([]core.Message, 0, len(items))
	for _, raw := range items {
		var msg core.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			m.logger.Warn("skipping corrupt history entry", "user_id", userID, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// Reset drops the user's entire history.
func (m *Manager) Reset(ctx context.Context, userID string) {
	m.store.Delete(ctx, historyKey(userID))
	m.logger.Info("conversation reset", "user_id", userID)
}
