package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var _ Backend = (*SQLiteBackend)(nil)

func newTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteSetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	require.NoError(t, b.SetJSON(ctx, "k", []byte(`{"a":1}`), 0))
	raw, ok, err := b.GetJSON(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, string(raw))

	// overwrite
	require.NoError(t, b.SetJSON(ctx, "k", []byte(`{"a":2}`), 0))
	raw, ok, err = b.GetJSON(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":2}`, string(raw))

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.GetJSON(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteTTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	require.NoError(t, b.SetJSON(ctx, "plan:x", []byte(`{}`), 20*time.Millisecond))
	_, ok, err := b.GetJSON(ctx, "plan:x")
	require.NoError(t, err)
	require.True(t, ok, "value should be live before expiry")

	time.Sleep(40 * time.Millisecond)
	_, ok, err = b.GetJSON(ctx, "plan:x")
	require.NoError(t, err)
	require.False(t, ok, "expired value must read as absent")

	keys, err := b.Keys(ctx, "plan:*")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestSQLiteKeysGlob(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, k := range []string{"plan:1", "plan:2", "dialog:u1", "plan_archive:9"} {
		require.NoError(t, b.SetJSON(ctx, k, []byte(`1`), 0))
	}
	keys, err := b.Keys(ctx, "plan:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"plan:1", "plan:2"}, keys)
}

func TestSQLiteListAppendTail(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, v := range []string{`"a"`, `"b"`, `"c"`, `"d"`} {
		require.NoError(t, b.PushItem(ctx, "dialog:u1", []byte(v)))
	}
	items, err := b.FetchTail(ctx, "dialog:u1", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, `"b"`, string(items[0]))
	require.Equal(t, `"d"`, string(items[2]))

	// deleting the key drops the list as well
	require.NoError(t, b.Delete(ctx, "dialog:u1"))
	items, err = b.FetchTail(ctx, "dialog:u1", 10)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestResilientPrefersDurablePath(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	r := NewResilient(b)

	r.SetJSON(ctx, "k", "v", 0)
	require.False(t, r.Degraded())

	var got string
	require.True(t, r.GetJSON(ctx, "k", &got))
	require.Equal(t, "v", got)

	// value visible directly through the backend proves the durable path ran
	raw, ok, err := b.GetJSON(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `"v"`, string(raw))
}
