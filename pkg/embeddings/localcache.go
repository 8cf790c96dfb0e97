package embeddings

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
)

const (
	// DefaultLocalCacheCapacity bounds the in-memory LRU and therefore the
	// on-disk file size.
	DefaultLocalCacheCapacity = 1000

	// DefaultSaveDebounce coalesces bursts of Set calls into one write.
	DefaultSaveDebounce = 5 * time.Second
)

// LocalCache is a persistent embedding cache backed by one binary file per
// install. An in-memory LRU mirrors the file; writes are flushed by a
// debounced background save.
type LocalCache struct {
	path          string
	embeddingType types.EmbeddingType
	debounce      time.Duration

	mu        sync.Mutex
	entries   *lru.Cache[hash.Key, types.Embedding]
	saveTimer *time.Timer
}

// NewLocalCache creates a cache persisted at path for vectors of the given
// type. Nothing is read from disk until Initialize.
func NewLocalCache(path string, embeddingType types.EmbeddingType) (*LocalCache, error) {
	entries, err := lru.New[hash.Key, types.Embedding](DefaultLocalCacheCapacity)
	if err != nil {
		return nil, err
	}

	return &LocalCache{
		path:          path,
		embeddingType: embeddingType,
		debounce:      DefaultSaveDebounce,
		entries:       entries,
	}, nil
}

// Initialize loads the cache file. A missing file, unreadable bytes, a
// format-version mismatch or an embedding-type mismatch all result in an
// empty cache; none of them is an error.
func (c *LocalCache) Initialize(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", c.path).Msg("Embedding cache unreadable, starting empty")
		}
		return nil
	}

	decoded, err := decodeCache(data, c.embeddingType)
	if err != nil {
		log.Debug().Err(err).Str("path", c.path).Msg("Embedding cache discarded, starting empty")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range decoded {
		c.entries.Add(entry.Key, entry.Embedding)
	}
	return nil
}

// Get returns the cached embedding for a key. Only the in-memory LRU is
// consulted; the file is read once at Initialize.
func (c *LocalCache) Get(key hash.Key) (types.Embedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Set stores an embedding and schedules a debounced save.
func (c *LocalCache) Set(key hash.Key, embedding types.Embedding) {
	if embedding.Type != c.embeddingType {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, embedding)

	if c.saveTimer != nil {
		c.saveTimer.Reset(c.debounce)
		return
	}
	c.saveTimer = time.AfterFunc(c.debounce, func() {
		if err := c.Save(); err != nil {
			log.Warn().Err(err).Str("path", c.path).Msg("Failed to save embedding cache")
		}
	})
}

// Save serializes the current LRU snapshot to the cache file. It is called
// by the debounce timer and may be called directly.
func (c *LocalCache) Save() error {
	c.mu.Lock()
	keys := c.entries.Keys()
	snapshot := make([]cacheEntry, 0, len(keys))
	for _, key := range keys {
		if embedding, ok := c.entries.Peek(key); ok {
			snapshot = append(snapshot, cacheEntry{Key: key, Embedding: embedding})
		}
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := encodeCache(&buf, c.embeddingType, snapshot); err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, buf.Bytes(), 0644)
}

// Close stops the debounce timer and flushes pending writes.
func (c *LocalCache) Close() error {
	c.mu.Lock()
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	c.mu.Unlock()

	return c.Save()
}
