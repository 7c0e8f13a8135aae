package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureClassIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.EnsureClass(ctx, "Docs", map[string]string{"content": "text"}))
	require.NoError(t, store.EnsureClass(ctx, "Docs", map[string]string{"content": "text"}))

	exists, err := store.ClassExists(ctx, "Docs")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestQueriesOnMissingClassFail(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.NearVector(ctx, "Nope", []float32{1, 0}, 0.7, 5, nil)
	assert.Error(t, err)

	_, err = store.WhereEqual(ctx, "Nope", "fileId", "f1", nil)
	assert.Error(t, err)

	_, err = store.CreateObject(ctx, "Nope", nil, map[string]any{})
	assert.Error(t, err)
}

func TestNearVectorOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.EnsureClass(ctx, "Docs", map[string]string{"content": "text"}))

	_, err := store.CreateObject(ctx, "Docs", []float32{1, 0}, map[string]any{"content": "exact"})
	require.NoError(t, err)
	_, err = store.CreateObject(ctx, "Docs", []float32{0.9, 0.1}, map[string]any{"content": "close"})
	require.NoError(t, err)
	_, err = store.CreateObject(ctx, "Docs", []float32{-1, 0}, map[string]any{"content": "opposite"})
	require.NoError(t, err)

	matches, err := store.NearVector(ctx, "Docs", []float32{1, 0}, 0.7, 5, []string{"content"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Properties["content"])
	assert.Equal(t, "close", matches[1].Properties["content"])
	assert.GreaterOrEqual(t, matches[0].Certainty, matches[1].Certainty)
}

func TestNearVectorHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.EnsureClass(ctx, "Docs", nil))

	for i := 0; i < 10; i++ {
		_, err := store.CreateObject(ctx, "Docs", []float32{1, 0}, map[string]any{})
		require.NoError(t, err)
	}

	matches, err := store.NearVector(ctx, "Docs", []float32{1, 0}, 0.0, 3, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestWhereEqualAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.EnsureClass(ctx, "Docs", nil))

	id, err := store.CreateObject(ctx, "Docs", []float32{1, 0}, map[string]any{"fileId": "f1"})
	require.NoError(t, err)
	_, err = store.CreateObject(ctx, "Docs", []float32{0, 1}, map[string]any{"fileId": "f2"})
	require.NoError(t, err)

	matches, err := store.WhereEqual(ctx, "Docs", "fileId", "f1", []string{"fileId"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)

	require.NoError(t, store.DeleteObject(ctx, "Docs", id))

	matches, err = store.WhereEqual(ctx, "Docs", "fileId", "f1", nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMergeObject(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.EnsureClass(ctx, "Docs", nil))

	id, err := store.CreateObject(ctx, "Docs", nil, map[string]any{"name": "before", "kept": "yes"})
	require.NoError(t, err)

	require.NoError(t, store.MergeObject(ctx, "Docs", id, map[string]any{"name": "after"}))

	obj, err := store.GetObject(ctx, "Docs", id)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "after", obj.Properties["name"])
	assert.Equal(t, "yes", obj.Properties["kept"])
}
