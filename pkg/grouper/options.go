package grouper

import (
	"github.com/flowbaker/toolgroups/pkg/categorize"
	"github.com/flowbaker/toolgroups/pkg/embeddings"
)

type Option func(*Grouper)

// WithComputer enables the embeddings-based relevance group.
func WithComputer(c *embeddings.Computer) Option {
	return func(g *Grouper) {
		g.computer = c
	}
}

// WithCategorizer enables LLM categorization of large toolsets.
func WithCategorizer(c *categorize.Categorizer) Option {
	return func(g *Grouper) {
		g.categorizer = c
	}
}

// WithCategoryCache replaces the default in-memory category cache, typically
// with one backed by a persistence store.
func WithCategoryCache(c *categorize.Cache) Option {
	return func(g *Grouper) {
		g.cache = c
	}
}

// WithLimits overrides the grouping thresholds.
func WithLimits(limits Limits) Option {
	return func(g *Grouper) {
		g.limits = limits
	}
}

// WithRanker overrides the expansion ranker.
func WithRanker(r Ranker) Option {
	return func(g *Grouper) {
		g.ranker = r
	}
}
