package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"finpilot/core"
)

// Index is the vector-index contract the knowledge base depends on. The
// reference implementation is SQLiteIndex; a hosted k-NN store can be dropped
// in behind the same interface.
type Index interface {
	// Ensure creates the named index with the given dimensionality if it
	// does not exist. Idempotent.
	Ensure(ctx context.Context, name string, dims int) error
	// Upsert stores or replaces one unit of text with its vector and metadata.
	Upsert(ctx context.Context, index, id, text string, vector Vector, metadata map[string]any) error
	// Search returns the k nearest units by descending cosine similarity.
	Search(ctx context.Context, index string, vector Vector, k int) ([]core.KnowledgeSearchHit, error)
}

// SQLiteIndex persists vectors in sqlite and answers k-NN queries with an
// exact cosine-similarity scan in Go. Suitable for corpora up to tens of
// thousands of units; beyond that swap in a dedicated vector store.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) the index database at dbPath.
func NewSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Ensure implements Index.
func (s *SQLiteIndex) Ensure(ctx context.Context, name string, dims int) error {
	schema := `
	CREATE TABLE IF NOT EXISTS indexes (
		name TEXT PRIMARY KEY,
		dims INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS units (
		index_name TEXT NOT NULL,
		id         TEXT NOT NULL,
		text       TEXT NOT NULL,
		vector     TEXT NOT NULL,
		metadata   TEXT,
		PRIMARY KEY (index_name, id)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexes (name, dims) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, dims)
	return err
}

// Upsert implements Index.
func (s *SQLiteIndex) Upsert(ctx context.Context, index, id, text string, vector Vector, metadata map[string]any) error {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO units (index_name, id, text, vector, metadata) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(index_name, id) DO UPDATE SET text = excluded.text, vector = excluded.vector, metadata = excluded.metadata`,
		index, id, text, string(vecJSON), string(metaJSON))
	return err
}

// Search implements Index.
func (s *SQLiteIndex) Search(ctx context.Context, index string, vector Vector, k int) ([]core.KnowledgeSearchHit, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, vector, metadata FROM units WHERE index_name = ?`, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []core.KnowledgeSearchHit
	for rows.Next() {
		var id, text, vecJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &text, &vecJSON, &metaJSON); err != nil {
			return nil, err
		}
		var vec Vector
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			continue // skip corrupt rows rather than failing the query
		}
		hit := core.KnowledgeSearchHit{ID: id, Text: text, Score: CosineSimilarity(vector, vec)}
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &hit.Metadata)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close closes the database handle.
func (s *SQLiteIndex) Close() error { return s.db.Close() }
