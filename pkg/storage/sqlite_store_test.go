package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "hashtags.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	testTermStoreContract(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestSQLiteStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "hashtags.db")
	store, err := NewSQLiteStore(context.Background(), path, testLogger())
	require.NoError(t, err)
	defer store.Close()
	assert.FileExists(t, path)
}

func TestSQLiteStore_SchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hashtags.db")

	store1, err := NewSQLiteStore(ctx, path, testLogger())
	require.NoError(t, err)
	require.NoError(t, store1.Insert(ctx, models.NewSearchTagRecord("sun", sampleResult("sun"))))
	require.NoError(t, store1.Close())

	store2, err := NewSQLiteStore(ctx, path, testLogger())
	require.NoError(t, err)
	defer store2.Close()

	n, err := store2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
