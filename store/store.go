// Package store implements the namespaced key-value layer every other
// subsystem persists through. A Resilient store wraps a durable Backend and
// degrades to process-local storage when the backend fails, so callers never
// observe storage errors.
package store

import (
	"context"
	"encoding/json"
	"time"

	"finpilot/logging"
)

// Backend is the durable storage contract. Implementations own their internal
// concurrency control and may enforce TTLs.
type Backend interface {
	// SetJSON stores a raw JSON payload under key. A zero ttl means no expiry.
	SetJSON(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetJSON returns the payload and whether the key exists (expired keys
	// count as absent).
	GetJSON(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes a key and any list stored under it.
	Delete(ctx context.Context, key string) error
	// Keys returns all live keys matching a glob pattern such as "plan:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	// PushItem appends a raw JSON payload to the ordered list at listKey.
	PushItem(ctx context.Context, listKey string, value []byte) error
	// FetchTail returns up to limit most recent list items, oldest first.
	FetchTail(ctx context.Context, listKey string, limit int) ([][]byte, error)
	// Close releases backend resources.
	Close() error
}

// Resilient fronts a Backend with graceful degradation. Every operation first
// attempts the backend; on any backend error a process-lifetime degraded flag
// flips and all traffic (including the failed operation) is served from an
// in-process fallback. There is no recovery probe: once degraded, the store
// stays degraded until the process exits.
//
// The fallback honors the same glob listing semantics but treats TTLs as
// informational only; values never expire in memory. That trade-off keeps the
// chat flow available during backend outages at the cost of consistency.
type Resilient struct {
	backend Backend
	mem     *memoryStore
	logger  logging.Logger
}

// ResilientOptions configure a Resilient store.
type ResilientOptions struct {
	Logger logging.Logger
}

// NewResilient wraps the given backend. A nil backend starts the store
// directly in degraded (memory-only) mode, which is useful for tests and
// examples.
func NewResilient(backend Backend, optFns ...func(o *ResilientOptions)) *Resilient {
	opts := ResilientOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	r := &Resilient{backend: backend, mem: newMemoryStore(), logger: opts.Logger}
	if backend == nil {
		r.mem.degrade()
	}
	return r
}

// Degraded reports whether the store has fallen back to in-process storage.
func (r *Resilient) Degraded() bool { return r.mem.degraded() }

// markUnavailable flips the degraded flag, logging the transition once.
func (r *Resilient) markUnavailable(err error) {
	if r.mem.degrade() {
		r.logger.Warn("backing store unavailable, switching to in-memory storage", "error", err)
	}
}

func (r *Resilient) durable() Backend {
	if r.backend == nil || r.mem.degraded() {
		return nil
	}
	return r.backend
}

// SetJSON marshals value and stores it under key with an optional TTL.
// Marshal failures are logged and dropped; storage failures degrade silently.
func (r *Resilient) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("unmarshalable value dropped", "key", key, "error", err)
		return
	}
	if b := r.durable(); b != nil {
		if err := b.SetJSON(ctx, key, raw, ttl); err == nil {
			return
		} else {
			r.markUnavailable(err)
		}
	}
	r.mem.set(key, raw)
}

// GetJSON loads the value stored under key into dest, reporting whether the
// key was present. Absent keys and backend failures both leave dest untouched.
func (r *Resilient) GetJSON(ctx context.Context, key string, dest any) bool {
	if b := r.durable(); b != nil {
		raw, ok, err := b.GetJSON(ctx, key)
		if err == nil {
			if !ok {
				return false
			}
			return json.Unmarshal(raw, dest) == nil
		}
		r.markUnavailable(err)
	}
	raw, ok := r.mem.get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Delete removes key (and any list under it) from the active store.
func (r *Resilient) Delete(ctx context.Context, key string) {
	if b := r.durable(); b != nil {
		if err := b.Delete(ctx, key); err == nil {
			return
		} else {
			r.markUnavailable(err)
		}
	}
	r.mem.delete(key)
}

// Keys lists live keys matching a glob pattern such as "plan:*".
func (r *Resilient) Keys(ctx context.Context, pattern string) []string {
	if b := r.durable(); b != nil {
		keys, err := b.Keys(ctx, pattern)
		if err == nil {
			return keys
		}
		r.markUnavailable(err)
	}
	return r.mem.keys(pattern)
}

// PushItem appends value to the ordered list at listKey.
func (r *Resilient) PushItem(ctx context.Context, listKey string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("unmarshalable list item dropped", "key", listKey, "error", err)
		return
	}
	if b := r.durable(); b != nil {
		if err := b.PushItem(ctx, listKey, raw); err == nil {
			return
		} else {
			r.markUnavailable(err)
		}
	}
	r.mem.push(listKey, raw)
}

// FetchTail returns up to limit most recent list items, oldest first, as raw
// JSON payloads for the caller to decode.
func (r *Resilient) FetchTail(ctx context.Context, listKey string, limit int) []json.RawMessage {
	var items [][]byte
	if b := r.durable(); b != nil {
		tail, err := b.FetchTail(ctx, listKey, limit)
		if err == nil {
			items = tail
		} else {
			r.markUnavailable(err)
		}
	}
	if items == nil {
		items = r.mem.tail(listKey, limit)
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out
}

// Close closes the underlying backend if one is attached.
func (r *Resilient) Close() error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Close()
}
