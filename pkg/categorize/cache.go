package categorize

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// DefaultCacheCapacity bounds the number of cached toolset categorizations.
const DefaultCacheCapacity = 128

// Store persists the category-cache snapshot as one opaque blob. A nil blob
// from Load means no snapshot exists yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Cache maps toolset content hashes to categorization results, with LRU
// eviction. A hit means the toolset's identifying text is unchanged and the
// remote categorization call can be skipped entirely.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[hash.Key, []types.SummarizedToolCategory]
	store   Store
}

// snapshotEntry is the cbor wire form of one cache entry.
type snapshotEntry struct {
	Key        []byte                         `cbor:"1,keyasint"`
	Categories []types.SummarizedToolCategory `cbor:"2,keyasint"`
}

// NewCache creates a category cache. store may be nil for a purely
// in-memory cache.
func NewCache(capacity int, store Store) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	entries, err := lru.New[hash.Key, []types.SummarizedToolCategory](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, store: store}, nil
}

// Initialize loads the persisted snapshot, if any. A corrupt snapshot is
// discarded silently; the cache starts cold.
func (c *Cache) Initialize(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	data, err := c.store.Load(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Category cache load failed, starting empty")
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var snapshot []snapshotEntry
	if err := cbor.Unmarshal(data, &snapshot); err != nil {
		log.Debug().Err(err).Msg("Category cache snapshot discarded")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range snapshot {
		if len(entry.Key) != hash.KeySize {
			continue
		}
		var key hash.Key
		copy(key[:], entry.Key)
		c.entries.Add(key, entry.Categories)
	}
	return nil
}

// Get returns the cached categorization for a toolset hash.
func (c *Cache) Get(key hash.Key) ([]types.SummarizedToolCategory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Put stores a categorization result.
func (c *Cache) Put(key hash.Key, categories []types.SummarizedToolCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, categories)
}

// Flush drops every entry whose key was not visited this pass, then persists
// the surviving snapshot. Persistence failures are logged, not returned;
// the in-memory state is already correct.
func (c *Cache) Flush(ctx context.Context, visited map[hash.Key]bool) {
	c.mu.Lock()
	var snapshot []snapshotEntry
	for _, key := range c.entries.Keys() {
		if !visited[key] {
			c.entries.Remove(key)
			continue
		}
		if categories, ok := c.entries.Peek(key); ok {
			snapshot = append(snapshot, snapshotEntry{Key: key[:], Categories: categories})
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	data, err := cbor.Marshal(snapshot)
	if err != nil {
		log.Warn().Err(err).Msg("Category cache snapshot encode failed")
		return
	}
	if err := c.store.Save(ctx, data); err != nil {
		log.Warn().Err(err).Msg("Category cache save failed")
	}
}

// Len returns the number of cached toolsets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
