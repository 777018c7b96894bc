package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend is the durable Backend used by the reference deployment. Keys
// live in a kv table with an optional expiry, ordered lists in kv_list with a
// per-list sequence. TTLs are enforced on read: expired rows count as absent
// and are purged opportunistically.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		expires_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS kv_list (
		list_key TEXT NOT NULL,
		seq      INTEGER NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (list_key, seq)
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

// SetJSON stores value under key. A zero ttl clears any previous expiry.
func (b *SQLiteBackend) SetJSON(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(value), expires)
	return err
}

// GetJSON returns the live value for key. Expired rows are deleted and
// reported as absent.
func (b *SQLiteBackend) GetJSON(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	var expires sql.NullInt64
	err := b.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires.Valid && expires.Int64 <= time.Now().UnixNano() {
		_, _ = b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Delete removes the key and any list stored under it.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `DELETE FROM kv_list WHERE list_key = ?`, key)
	return err
}

// Keys lists live keys matching a glob pattern. The glob is translated to a
// LIKE expression: * becomes %, ? becomes _, and LIKE wildcards in the
// pattern itself are escaped.
func (b *SQLiteBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	like := globToLike(pattern)
	rows, err := b.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' AND (expires_at IS NULL OR expires_at > ?)`,
		like, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func globToLike(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// PushItem appends value to the list at listKey, allocating the next sequence
// number in the same statement so concurrent appends stay ordered.
func (b *SQLiteBackend) PushItem(ctx context.Context, listKey string, value []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv_list (list_key, seq, value)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ? FROM kv_list WHERE list_key = ?`,
		listKey, string(value), listKey)
	return err
}

// FetchTail returns up to limit most recent items for listKey, oldest first.
func (b *SQLiteBackend) FetchTail(ctx context.Context, listKey string, limit int) ([][]byte, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT value FROM kv_list WHERE list_key = ? ORDER BY seq DESC LIMIT ?`, listKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items [][]byte
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		items = append(items, []byte(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// Close closes the database handle.
func (b *SQLiteBackend) Close() error { return b.db.Close() }
