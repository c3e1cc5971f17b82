package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scrapbook.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, testMemory("a", "first")))
	require.NoError(t, store.Upsert(ctx, testMemory("b", "second")))

	// A fresh store over the same path sees the same collection in the
	// same order.
	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	memories, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, "b", memories[0].ID)
	assert.Equal(t, "a", memories[1].ID)
}

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	memories, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestFileStore_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrapbook.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestFileStore_UpsertRewritesWholesale(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scrapbook.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testMemory("a", "first")))

	updated := testMemory("a", "first")
	updated.ImageURL = "data:image/png;base64,QkJC"
	require.NoError(t, store.Upsert(ctx, updated))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	memories, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "data:image/png;base64,QkJC", memories[0].ImageURL)
}
