package knowledge

import (
	"context"
	"sort"
	"sync"

	"finpilot/core"
)

type memoryUnit struct {
	text     string
	vector   Vector
	metadata map[string]any
}

// MemoryIndex is a volatile Index implementation storing units in process
// local maps. It is safe for concurrent access and best suited for tests and
// ephemeral demo setups.
type MemoryIndex struct {
	mu      sync.RWMutex
	indexes map[string]map[string]memoryUnit
}

// NewMemoryIndex constructs an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{indexes: make(map[string]map[string]memoryUnit)}
}

// Ensure implements Index.
func (m *MemoryIndex) Ensure(_ context.Context, name string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		m.indexes[name] = make(map[string]memoryUnit)
	}
	return nil
}

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, index, id, text string, vector Vector, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	units, ok := m.indexes[index]
	if !ok {
		units = make(map[string]memoryUnit)
		m.indexes[index] = units
	}
	vec := make(Vector, len(vector))
	copy(vec, vector)
	units[id] = memoryUnit{text: text, vector: vec, metadata: metadata}
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, index string, vector Vector, k int) ([]core.KnowledgeSearchHit, error) {
	if k <= 0 {
		k = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []core.KnowledgeSearchHit
	for id, unit := range m.indexes[index] {
		hits = append(hits, core.KnowledgeSearchHit{
			ID:       id,
			Text:     unit.text,
			Score:    CosineSimilarity(vector, unit.vector),
			Metadata: unit.metadata,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
