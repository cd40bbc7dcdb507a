package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askpurposely/internal/scenario"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Current: scenario.Raw{
			"id":          "s-1",
			"question":    "Is it rude to split the bill on a first date?",
			"perspective": "Offer once, mean it, and read the response without keeping score afterwards.",
		},
		Queue: []scenario.Raw{
			{"id": "s-2", "question": "q2", "perspective": "p2"},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "user-1", sampleSnapshot()))
	got, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, got.Version)
	assert.Equal(t, "s-1", got.Current["id"])
	require.Len(t, got.Queue, 1)
	assert.Equal(t, "s-2", got.Queue[0]["id"])

	require.NoError(t, store.Delete(ctx, "user-1"))
	_, err = store.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	// Deleting a missing snapshot is not an error.
	require.NoError(t, store.Delete(ctx, "user-1"))
}

func TestFileStoreVersionMismatchIsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	stale, err := json.Marshal(map[string]any{"version": SchemaVersion + 1, "current": nil, "queue": []any{}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user-1.json"), stale, 0o644))

	_, err = store.Load(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreKeysAreSanitized(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "User One/../../etc", sampleSnapshot()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ask.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "user-1", sampleSnapshot()))
	// Saving again overwrites in place.
	snap := sampleSnapshot()
	snap.Queue = nil
	require.NoError(t, store.Save(ctx, "user-1", snap))

	got, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.Current["id"])
	assert.Empty(t, got.Queue)

	require.NoError(t, store.Delete(ctx, "user-1"))
	_, err = store.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSafeKeyAnonymousFallback(t *testing.T) {
	assert.Equal(t, "anonymous", safeKey("  "))
	assert.Equal(t, "user-1", safeKey("User-1"))
}
