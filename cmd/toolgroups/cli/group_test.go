package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/toolgroups/pkg/embeddings"
	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

func TestBuildGrouper_EmbeddingCachePersistsOnClose(t *testing.T) {
	config := &Config{
		OpenAIAPIKey:   "sk-test",
		ChatProvider:   "openai",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		CacheDir:       t.TempDir(),
	}

	_, local, err := buildGrouper(config)
	require.NoError(t, err)
	require.NotNil(t, local, "an embeddings cache must be wired when an OpenAI key is present")

	key := hash.ToolKey("grep", "search files")
	embedding := types.Embedding{Type: "text-embedding-3-small", Value: []float32{0.5, -0.25}}
	local.Set(key, embedding)

	// A one-shot command exits well before the save debounce fires; Close
	// must flush to disk so the next run finds the cached vector.
	require.NoError(t, local.Close())

	reloaded, err := embeddings.NewLocalCache(
		filepath.Join(config.CacheDir, "embeddings.bin"), "text-embedding-3-small")
	require.NoError(t, err)
	require.NoError(t, reloaded.Initialize(context.Background()))

	got, ok := reloaded.Get(key)
	require.True(t, ok)
	assert.Equal(t, embedding.Value, got.Value)
}

func TestBuildGrouper_NoEmbeddingCacheWithoutKey(t *testing.T) {
	config := &Config{
		ChatProvider:    "anthropic",
		AnthropicAPIKey: "sk-ant-test",
		ChatModel:       "claude-sonnet-4-0",
		EmbeddingModel:  "text-embedding-3-small",
		CacheDir:        t.TempDir(),
	}

	g, local, err := buildGrouper(config)
	require.NoError(t, err)
	assert.NotNil(t, g)
	assert.Nil(t, local)
}
