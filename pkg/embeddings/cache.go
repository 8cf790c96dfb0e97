// Package embeddings computes, caches and ranks tool embeddings. A Computer
// layers an in-flight request map over pluggable caches so each tool's
// vector is fetched from the provider at most once, then serves
// similarity-ranked lookups for query-time relevance.
package embeddings

import (
	"context"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// Cache is one layer of embedding storage. Layers are probed in order by the
// Computer; newly computed embeddings are written back to every layer.
//
// Keys are content hashes of the tool's identifying text (hash.ToolKey), so
// a renamed or re-described tool misses and is recomputed.
type Cache interface {
	// Initialize loads any persisted state. It is called once, lazily, by
	// the owning Computer. Implementations recover from bad state by
	// starting empty rather than returning an error for corruption.
	Initialize(ctx context.Context) error

	// Get returns the cached embedding for a key, if present.
	Get(key hash.Key) (types.Embedding, bool)

	// Set stores an embedding. Read-only layers may ignore it.
	Set(key hash.Key, embedding types.Embedding)
}
