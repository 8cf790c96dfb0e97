package embeddings

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// StaticCache is a read-only embedding cache loaded from a precomputed
// bundle shipped with a release. It is the fastest layer: probed first,
// never written to.
type StaticCache struct {
	path          string
	embeddingType types.EmbeddingType

	entries map[hash.Key]types.Embedding
}

// NewStaticCache creates a cache reading the bundle at path. Nothing is read
// until Initialize.
func NewStaticCache(path string, embeddingType types.EmbeddingType) *StaticCache {
	return &StaticCache{
		path:          path,
		embeddingType: embeddingType,
		entries:       map[hash.Key]types.Embedding{},
	}
}

// Initialize loads the bundle. A missing or unusable bundle leaves the cache
// empty; it is never an error.
func (c *StaticCache) Initialize(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", c.path).Msg("Embedding bundle unreadable")
		}
		return nil
	}

	c.loadBytes(data)
	return nil
}

// LoadFrom fills the cache from an already-open bundle, for callers that
// embed the bundle in the binary instead of shipping a file.
func (c *StaticCache) LoadFrom(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.loadBytes(data)
	return nil
}

func (c *StaticCache) loadBytes(data []byte) {
	decoded, err := decodeCache(data, c.embeddingType)
	if err != nil {
		log.Debug().Err(err).Msg("Embedding bundle discarded")
		return
	}
	for _, entry := range decoded {
		c.entries[entry.Key] = entry.Embedding
	}
}

// Get returns the bundled embedding for a key, if present.
func (c *StaticCache) Get(key hash.Key) (types.Embedding, bool) {
	embedding, ok := c.entries[key]
	return embedding, ok
}

// Set is a no-op; the bundle is read-only.
func (c *StaticCache) Set(key hash.Key, embedding types.Embedding) {}
