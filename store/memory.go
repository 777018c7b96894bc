package store

import (
	"path"
	"sync"
)

// memoryStore is the process-local fallback used once the durable backend is
// marked unavailable. A single mutex guards every operation because list
// appends are read-modify-write sequences that may race across concurrent
// requests for the same user key.
type memoryStore struct {
	mu     sync.Mutex
	down   bool
	values map[string][]byte
	lists  map[string][][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}, lists: map[string][][]byte{}}
}

// degrade flips the degraded flag, reporting whether this call flipped it.
func (m *memoryStore) degrade() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return false
	}
	m.down = true
	return true
}

func (m *memoryStore) degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down
}

func (m *memoryStore) set(key string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = cloneBytes(raw)
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(raw), true
}

func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.lists, key)
}

// keys matches stored keys against a glob pattern ("plan:*"). Malformed
// patterns match nothing.
func (m *memoryStore) keys(pattern string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.values {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			out = append(out, key)
		}
	}
	return out
}

func (m *memoryStore) push(listKey string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[listKey] = append(m.lists[listKey], cloneBytes(raw))
}

func (m *memoryStore) tail(listKey string, limit int) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.lists[listKey]
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([][]byte, len(items))
	for i, it := range items {
		out[i] = cloneBytes(it)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
