package embeddings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

const testType = types.EmbeddingType("text-embedding-3-small")

func TestLocalCache_SaveReloadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")

	cache, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	require.NoError(t, cache.Initialize(context.Background()))

	keyA := hash.ToolKey("alpha", "first tool")
	keyB := hash.ToolKey("beta", "second tool")
	cache.Set(keyA, types.Embedding{Type: testType, Value: []float32{0.25, -1.5, 3.0}})
	cache.Set(keyB, types.Embedding{Type: testType, Value: []float32{1.0, 0.0, -0.125}})

	require.NoError(t, cache.Save())

	// A fresh instance over the same file sees both entries with
	// float32-precision equality.
	reloaded, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	require.NoError(t, reloaded.Initialize(context.Background()))

	got, ok := reloaded.Get(keyA)
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, -1.5, 3.0}, got.Value)
	assert.Equal(t, testType, got.Type)

	got, ok = reloaded.Get(keyB)
	require.True(t, ok)
	assert.Equal(t, []float32{1.0, 0.0, -0.125}, got.Value)
}

func TestLocalCache_ReloadWithDifferentTypeStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")

	cache, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	key := hash.ToolKey("alpha", "first tool")
	cache.Set(key, types.Embedding{Type: testType, Value: []float32{1, 2}})
	require.NoError(t, cache.Save())

	other, err := NewLocalCache(path, types.EmbeddingType("text-embedding-ada-002"))
	require.NoError(t, err)
	require.NoError(t, other.Initialize(context.Background()))

	_, ok := other.Get(key)
	assert.False(t, ok)
}

func TestLocalCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x01, 0x02, 0x03}, 0644))

	cache, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	require.NoError(t, cache.Initialize(context.Background()))

	_, ok := cache.Get(hash.ToolKey("alpha", "first tool"))
	assert.False(t, ok)
}

func TestLocalCache_MissingFileStartsEmpty(t *testing.T) {
	cache, err := NewLocalCache(filepath.Join(t.TempDir(), "missing.bin"), testType)
	require.NoError(t, err)
	require.NoError(t, cache.Initialize(context.Background()))

	_, ok := cache.Get(hash.ToolKey("alpha", "first tool"))
	assert.False(t, ok)
}

func TestLocalCache_SetIgnoresMismatchedType(t *testing.T) {
	cache, err := NewLocalCache(filepath.Join(t.TempDir(), "embeddings.bin"), testType)
	require.NoError(t, err)

	key := hash.ToolKey("alpha", "first tool")
	cache.Set(key, types.Embedding{Type: "other-model", Value: []float32{1}})

	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestDecodeCache_TruncatedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")

	cache, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	cache.Set(hash.ToolKey("alpha", "a"), types.Embedding{Type: testType, Value: []float32{1, 2, 3}})
	require.NoError(t, cache.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	reloaded, err := NewLocalCache(path, testType)
	require.NoError(t, err)
	require.NoError(t, reloaded.Initialize(context.Background()))
	_, ok := reloaded.Get(hash.ToolKey("alpha", "a"))
	assert.False(t, ok)
}
