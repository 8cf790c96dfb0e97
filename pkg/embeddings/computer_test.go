package embeddings

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// fakeEmbeddingsClient returns deterministic vectors and records every batch
// it receives.
type fakeEmbeddingsClient struct {
	mu      sync.Mutex
	batches [][]string
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbeddingsClient) ComputeEmbeddings(ctx context.Context, embeddingType types.EmbeddingType, texts []string) ([]types.Embedding, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	result := make([]types.Embedding, len(texts))
	for i, text := range texts {
		value, ok := f.vectors[text]
		if !ok {
			value = []float32{0, 0}
		}
		result[i] = types.Embedding{Type: embeddingType, Value: value}
	}
	return result, nil
}

func (f *fakeEmbeddingsClient) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testTool(name string) types.Tool {
	return types.Tool{Name: name, Description: "does " + name, Source: types.ExtensionSource("ext1")}
}

func TestRetrieveSimilar_MixedHitsOneBatchedCall(t *testing.T) {
	toolA, toolB := testTool("a"), testTool("b")
	toolC, toolD := testTool("c"), testTool("d")

	// Pre-populate a local cache with a and b.
	local, err := NewLocalCache(filepath.Join(t.TempDir(), "cache.bin"), testType)
	require.NoError(t, err)
	local.Set(hash.ToolKey(toolA.Name, toolA.Description), types.Embedding{Type: testType, Value: []float32{1, 0}})
	local.Set(hash.ToolKey(toolB.Name, toolB.Description), types.Embedding{Type: testType, Value: []float32{0.9, 0.1}})

	client := &fakeEmbeddingsClient{vectors: map[string][]float32{
		embeddingText(toolC): {0, 1},
		embeddingText(toolD): {0.5, 0.5},
	}}
	computer := NewComputer(client, testType, local)

	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	ranked := computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA, toolB, toolC, toolD}, 10)

	// Exactly one remote call, containing only the two missing tool texts.
	require.Equal(t, 1, client.batchCount())
	assert.Equal(t, []string{embeddingText(toolC), embeddingText(toolD)}, client.batches[0])

	// All four tools ranked, most similar first.
	assert.Equal(t, []string{"a", "b", "d", "c"}, ranked)

	// Computed embeddings were written back to the cache.
	_, ok := local.Get(hash.ToolKey(toolC.Name, toolC.Description))
	assert.True(t, ok)
}

func TestRetrieveSimilar_TruncatesToCount(t *testing.T) {
	client := &fakeEmbeddingsClient{vectors: map[string][]float32{
		embeddingText(testTool("a")): {1, 0},
		embeddingText(testTool("b")): {0.8, 0.2},
		embeddingText(testTool("c")): {0, 1},
	}}
	computer := NewComputer(client, testType)

	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	ranked := computer.RetrieveSimilarForAvailableTools(context.Background(), query,
		[]types.Tool{testTool("a"), testTool("b"), testTool("c")}, 2)

	assert.Equal(t, []string{"a", "b"}, ranked)
}

func TestRetrieveSimilar_BatchFailureDegrades(t *testing.T) {
	toolA, toolB := testTool("a"), testTool("b")

	local, err := NewLocalCache(filepath.Join(t.TempDir(), "cache.bin"), testType)
	require.NoError(t, err)
	local.Set(hash.ToolKey(toolA.Name, toolA.Description), types.Embedding{Type: testType, Value: []float32{1, 0}})

	client := &fakeEmbeddingsClient{err: errors.New("rate limited")}
	computer := NewComputer(client, testType, local)

	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	ranked := computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA, toolB}, 10)

	// The cached tool still ranks; the failed one is absent, not an error.
	assert.Equal(t, []string{"a"}, ranked)

	// The failure evicted b from the in-flight map, so a later call retries.
	client.err = nil
	client.vectors = map[string][]float32{embeddingText(toolB): {0, 1}}
	ranked = computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA, toolB}, 10)
	assert.Equal(t, []string{"a", "b"}, ranked)
	assert.Equal(t, 2, client.batchCount())
}

func TestRetrieveSimilar_ResolvedComputationsAreNotRepeated(t *testing.T) {
	toolA := testTool("a")
	client := &fakeEmbeddingsClient{vectors: map[string][]float32{embeddingText(toolA): {1, 0}}}
	computer := NewComputer(client, testType)

	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA}, 10)
	computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA}, 10)

	assert.Equal(t, 1, client.batchCount())
}

func TestRetrieveSimilar_MismatchedTypeExcluded(t *testing.T) {
	toolA, toolB := testTool("a"), testTool("b")

	local, err := NewLocalCache(filepath.Join(t.TempDir(), "cache.bin"), testType)
	require.NoError(t, err)
	local.Set(hash.ToolKey(toolA.Name, toolA.Description), types.Embedding{Type: testType, Value: []float32{1, 0}})

	client := &fakeEmbeddingsClient{vectors: map[string][]float32{embeddingText(toolB): {0, 1}}}
	computer := NewComputer(client, testType, local)

	// Query embedding of a different type: no pair is usable.
	query := types.Embedding{Type: "other-model", Value: []float32{1, 0}}
	ranked := computer.RetrieveSimilarForAvailableTools(context.Background(), query, []types.Tool{toolA, toolB}, 10)
	assert.Empty(t, ranked)
}

func TestRetrieveSimilar_CancelledReturnsResolved(t *testing.T) {
	toolA, toolB := testTool("a"), testTool("b")

	local, err := NewLocalCache(filepath.Join(t.TempDir(), "cache.bin"), testType)
	require.NoError(t, err)
	local.Set(hash.ToolKey(toolA.Name, toolA.Description), types.Embedding{Type: testType, Value: []float32{1, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeEmbeddingsClient{err: ctx.Err()}
	computer := NewComputer(client, testType, local)

	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	ranked := computer.RetrieveSimilarForAvailableTools(ctx, query, []types.Tool{toolA, toolB}, 10)
	assert.Equal(t, []string{"a"}, ranked)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRankBySimilarity_StableOnTies(t *testing.T) {
	query := types.Embedding{Type: testType, Value: []float32{1, 0}}
	vectors := map[string]types.Embedding{
		"x": {Type: testType, Value: []float32{0, 1}},
		"y": {Type: testType, Value: []float32{0, 1}},
		"z": {Type: testType, Value: []float32{1, 0}},
	}

	ranked := rankBySimilarity(query, []string{"x", "y", "z"}, vectors, 10)
	assert.Equal(t, []string{"z", "x", "y"}, ranked)
}
