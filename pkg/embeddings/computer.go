package embeddings

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/provider"
	"github.com/flowbaker/toolgroups/pkg/types"
)

// pending is one in-flight (or resolved) embedding computation. The channel
// is closed exactly once, after which embedding/ok are immutable.
type pending struct {
	done      chan struct{}
	embedding types.Embedding
	ok        bool
}

// Computer resolves tool embeddings through a stack of caches and a remote
// embeddings client, and ranks tools against a query embedding.
//
// Concurrent callers requesting the same tool await one shared computation
// instead of issuing duplicate remote calls. The in-flight map and the
// caches are the only state shared across invocations.
type Computer struct {
	client        provider.EmbeddingsClient
	embeddingType types.EmbeddingType
	caches        []Cache

	initOnce sync.Once

	mu       sync.Mutex
	inflight map[string]*pending
}

// NewComputer creates a Computer over the given cache layers, probed in
// order (fastest first).
func NewComputer(client provider.EmbeddingsClient, embeddingType types.EmbeddingType, caches ...Cache) *Computer {
	return &Computer{
		client:        client,
		embeddingType: embeddingType,
		caches:        caches,
		inflight:      map[string]*pending{},
	}
}

// ensureInitialized loads every cache layer exactly once.
func (c *Computer) ensureInitialized(ctx context.Context) {
	c.initOnce.Do(func() {
		for _, cache := range c.caches {
			if err := cache.Initialize(ctx); err != nil {
				log.Debug().Err(err).Msg("Embedding cache initialization failed")
			}
		}
	})
}

// EmbedQuery computes the embedding for a free-text query. On any failure it
// returns ok=false so callers can degrade to an empty relevance set.
func (c *Computer) EmbedQuery(ctx context.Context, text string) (types.Embedding, bool) {
	results, err := c.client.ComputeEmbeddings(ctx, c.embeddingType, []string{text})
	if err != nil || len(results) == 0 {
		log.Warn().Err(err).Msg("Query embedding failed")
		return types.Embedding{}, false
	}
	return results[0], true
}

// embeddingText is what gets embedded for a tool. It matches the hashing
// input so cache keys and vectors describe the same content.
func embeddingText(t types.Tool) string {
	return t.Name + "\x00" + t.Description
}

// RetrieveSimilarForAvailableTools returns up to count tool names ranked by
// cosine similarity to queryEmbedding, descending. Tools without a cached
// embedding are computed in one batched remote call; a batch failure
// degrades those tools to "no embedding" and they are simply absent from the
// ranking. Cancellation returns whatever has resolved so far.
func (c *Computer) RetrieveSimilarForAvailableTools(ctx context.Context, queryEmbedding types.Embedding, tools []types.Tool, count int) []string {
	c.ensureInitialized(ctx)

	names := make([]string, 0, len(tools))
	keys := make(map[string]hash.Key, len(tools))
	resolved := make(map[string]types.Embedding, len(tools))

	var missing []types.Tool
	var waiting []string
	waitingFor := map[string]*pending{}

	c.mu.Lock()
	for _, t := range tools {
		names = append(names, t.Name)
		key := hash.ToolKey(t.Name, t.Description)
		keys[t.Name] = key

		if embedding, ok := c.probeCaches(key); ok {
			resolved[t.Name] = embedding
			continue
		}

		if p, ok := c.inflight[t.Name]; ok {
			waiting = append(waiting, t.Name)
			waitingFor[t.Name] = p
			continue
		}

		p := &pending{done: make(chan struct{})}
		c.inflight[t.Name] = p
		waiting = append(waiting, t.Name)
		waitingFor[t.Name] = p
		missing = append(missing, t)
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		c.computeBatch(ctx, missing, keys)
	}

	for _, name := range waiting {
		p := waitingFor[name]
		select {
		case <-p.done:
			if p.ok {
				resolved[name] = p.embedding
			}
		case <-ctx.Done():
			// Cancelled mid-flight: rank what we have.
			return rankBySimilarity(queryEmbedding, names, resolved, count)
		}
	}

	return rankBySimilarity(queryEmbedding, names, resolved, count)
}

// probeCaches checks every layer in order. Caller holds c.mu; cache layers
// do their own locking but probing under the computer lock keeps the probe
// and the in-flight registration atomic.
func (c *Computer) probeCaches(key hash.Key) (types.Embedding, bool) {
	for _, cache := range c.caches {
		if embedding, ok := cache.Get(key); ok {
			return embedding, true
		}
	}
	return types.Embedding{}, false
}

// computeBatch issues one remote call for exactly the missing tools and
// resolves their pending entries. On failure the entries are resolved empty
// and evicted from the in-flight map so a later call can retry.
func (c *Computer) computeBatch(ctx context.Context, missing []types.Tool, keys map[string]hash.Key) {
	texts := make([]string, len(missing))
	for i, t := range missing {
		texts[i] = embeddingText(t)
	}

	results, err := c.client.ComputeEmbeddings(ctx, c.embeddingType, texts)
	if err != nil || len(results) != len(missing) {
		if err != nil {
			log.Warn().Err(err).Int("tool_count", len(missing)).Msg("Tool embedding batch failed")
		} else {
			log.Warn().Int("got", len(results)).Int("want", len(missing)).Msg("Tool embedding batch incomplete")
		}

		c.mu.Lock()
		for _, t := range missing {
			if p, ok := c.inflight[t.Name]; ok {
				close(p.done)
				delete(c.inflight, t.Name)
			}
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	for i, t := range missing {
		for _, cache := range c.caches {
			cache.Set(keys[t.Name], results[i])
		}
		if p, ok := c.inflight[t.Name]; ok {
			p.embedding = results[i]
			p.ok = true
			close(p.done)
		}
	}
	c.mu.Unlock()
}
