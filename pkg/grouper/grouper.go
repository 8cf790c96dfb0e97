// Package grouper turns a flat, possibly huge tool list into a bounded tree
// of virtual tools. Each pass partitions tools by source, resolves each
// toolset's categorization through a content-hash cache or the LLM
// collaborator, rebuilds the tree with deduplicated names, carries expansion
// state over from the previous tree, merges in an embeddings-ranked
// "predicted relevant" group, and expands cheap groups until the visible
// tool count approaches the budget.
package grouper

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/categorize"
	"github.com/flowbaker/toolgroups/pkg/embeddings"
	"github.com/flowbaker/toolgroups/pkg/hash"
	"github.com/flowbaker/toolgroups/pkg/types"
	"github.com/flowbaker/toolgroups/pkg/virtualtool"
)

const (
	// StartGroupingAfterToolCount is the tool count below which grouping is
	// skipped entirely and the flat list is returned as-is.
	StartGroupingAfterToolCount = 128

	// MinToolsetSizeToGroup is the toolset size at or below which the
	// toolset's tools pass through flat, uncategorized.
	MinToolsetSizeToGroup = 4

	// GroupWithinToolset is the toolset size at or below which the whole
	// toolset collapses into a single summarized group.
	GroupWithinToolset = 16

	// ExpandUntilCount is the soft budget the expansion pass approaches.
	ExpandUntilCount = 64

	// HardToolLimit is the ceiling on visible tools. Never exceeded by
	// expansion.
	HardToolLimit = 128

	// EmbeddingsGroupName names the synthetic group of query-relevant tools.
	EmbeddingsGroupName = "predicted_relevant_tools"

	// UncategorizedToolsGroupName is the pseudo-category whose tools are
	// flattened instead of wrapped in a group.
	UncategorizedToolsGroupName = "uncategorized"

	// PredictedGroupSize is how many tools the relevance group holds.
	PredictedGroupSize = 10
)

// Limits carries the grouping thresholds, overridable per Grouper.
type Limits struct {
	StartGroupingAfterToolCount int
	MinToolsetSizeToGroup       int
	GroupWithinToolset          int
	ExpandUntilCount            int
	HardToolLimit               int
}

// DefaultLimits returns the standard thresholds.
func DefaultLimits() Limits {
	return Limits{
		StartGroupingAfterToolCount: StartGroupingAfterToolCount,
		MinToolsetSizeToGroup:       MinToolsetSizeToGroup,
		GroupWithinToolset:          GroupWithinToolset,
		ExpandUntilCount:            ExpandUntilCount,
		HardToolLimit:               HardToolLimit,
	}
}

// errNoCategorizer degrades toolsets to flat when no chat collaborator was
// configured.
var errNoCategorizer = errors.New("no categorizer configured")

// Ranker orders expansion candidates; lower ranks expand first.
type Ranker func(*virtualtool.VirtualTool) float64

// contentsRanker is the default: cheapest groups (fewest children) first.
func contentsRanker(vt *virtualtool.VirtualTool) float64 {
	return float64(len(vt.Contents))
}

// Grouper orchestrates grouping passes. All remote failures degrade to a
// flatter but valid tree; AddGroups never fails.
type Grouper struct {
	computer    *embeddings.Computer
	categorizer *categorize.Categorizer
	cache       *categorize.Cache
	limits      Limits
	ranker      Ranker

	initOnce sync.Once

	mu   sync.Mutex
	turn int
}

// New creates a Grouper. A Grouper with no categorizer flattens every
// toolset; one with no computer skips the relevance group.
func New(opts ...Option) (*Grouper, error) {
	g := &Grouper{
		limits: DefaultLimits(),
		ranker: contentsRanker,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.cache == nil {
		cache, err := categorize.NewCache(0, nil)
		if err != nil {
			return nil, err
		}
		g.cache = cache
	}

	return g, nil
}

// CurrentTurn returns the number of completed grouping passes.
func (g *Grouper) CurrentTurn() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

// AddGroups rebuilds root.Contents from tools for the given query. The
// previous contents of root inform expansion state and categorization
// stability; the tree itself is replaced wholesale.
func (g *Grouper) AddGroups(ctx context.Context, query string, root *virtualtool.VirtualTool, tools []types.Tool) {
	g.mu.Lock()
	g.turn++
	turn := g.turn
	g.mu.Unlock()

	passLog := log.With().Str("pass_id", uuid.NewString()).Int("turn", turn).Logger()

	if len(tools) < g.limits.StartGroupingAfterToolCount {
		root.Contents = flatNodes(tools)
		return
	}

	g.initOnce.Do(func() {
		if err := g.cache.Initialize(ctx); err != nil {
			passLog.Debug().Err(err).Msg("Category cache initialization failed")
		}
	})

	partitions, order := partitionByToolset(tools)

	prevGroups, prevCategories := snapshotPrevious(root)

	// The relevance computation runs concurrently with categorization and
	// is awaited after the tree is rebuilt.
	predictedCh := make(chan *virtualtool.VirtualTool, 1)
	go func() {
		predictedCh <- g.computePredictedGroup(ctx, query, tools)
	}()

	visited := make(map[hash.Key]bool)
	var visitedMu sync.Mutex

	results := make([][]virtualtool.Node, len(order))
	var wg sync.WaitGroup
	for i, key := range order {
		if key == "builtin" {
			// Builtin tools are never grouped.
			results[i] = flatNodes(partitions[key])
			continue
		}

		wg.Add(1)
		go func(i int, toolsetKey string, toolsetTools []types.Tool) {
			defer wg.Done()

			contentKey := hash.ToolsetKey(toolsetTools)
			visitedMu.Lock()
			visited[contentKey] = true
			visitedMu.Unlock()

			results[i] = g.groupToolset(ctx, passLog, toolsetKey, contentKey, toolsetTools, prevCategories[toolsetKey])
		}(i, key, partitions[key])
	}
	wg.Wait()

	g.cache.Flush(ctx, visited)

	var combined []virtualtool.Node
	for _, nodes := range results {
		combined = append(combined, nodes...)
	}
	root.Contents = virtualtool.Deduplicate(combined)

	carryOverState(root, prevGroups)

	select {
	case predicted := <-predictedCh:
		mergePredictedGroup(root, predicted)
	case <-ctx.Done():
		passLog.Debug().Msg("Relevance computation cancelled")
	}

	reExpandToolsToHitBudget(root, g.ranker, g.limits.ExpandUntilCount, g.limits.HardToolLimit)
}

// DidInvokeTool records that a tool inside the tree was called: its
// enclosing group (if any) is marked used on the current turn so later
// passes keep it expanded.
func (g *Grouper) DidInvokeTool(root *virtualtool.VirtualTool, toolName string) {
	turn := g.CurrentTurn()
	markUsed(root.Contents, toolName, turn)
}

func markUsed(nodes []virtualtool.Node, toolName string, turn int) bool {
	for _, n := range nodes {
		vt, ok := n.(*virtualtool.VirtualTool)
		if !ok {
			if n.NodeName() == toolName {
				return true
			}
			continue
		}
		if markUsed(vt.Contents, toolName, turn) {
			vt.IsExpanded = true
			vt.LastUsedOnTurn = turn
			return true
		}
	}
	return false
}

// groupToolset resolves one non-builtin toolset to its tree nodes. Every
// failure path returns the flat tool list instead.
func (g *Grouper) groupToolset(ctx context.Context, passLog zerolog.Logger, toolsetKey string, contentKey hash.Key, tools []types.Tool, hint []types.SummarizedToolCategory) []virtualtool.Node {
	if len(tools) <= g.limits.MinToolsetSizeToGroup {
		return flatNodes(tools)
	}

	categories, ok := g.cache.Get(contentKey)
	if !ok {
		var err error
		categories, err = g.categorizeToolset(ctx, toolsetKey, tools, hint)
		if err != nil {
			passLog.Warn().Err(err).Str("toolset", toolsetKey).Msg("Categorization failed, flattening toolset")
			return flatNodes(tools)
		}
		g.cache.Put(contentKey, categories)
	}

	return buildToolsetNodes(toolsetKey, tools, categories)
}

func (g *Grouper) categorizeToolset(ctx context.Context, toolsetKey string, tools []types.Tool, hint []types.SummarizedToolCategory) ([]types.SummarizedToolCategory, error) {
	if g.categorizer == nil {
		return nil, errNoCategorizer
	}

	if len(tools) <= g.limits.GroupWithinToolset {
		category, err := g.categorizer.SummarizeToolset(ctx, toolsetKey, tools)
		if err != nil {
			return nil, err
		}
		return []types.SummarizedToolCategory{category}, nil
	}

	return g.categorizer.DivideToolset(ctx, toolsetKey, tools, filterHint(hint, tools))
}

// filterHint restricts a previous categorization to tools still present and
// drops categories emptied by the filter.
func filterHint(hint []types.SummarizedToolCategory, tools []types.Tool) []types.SummarizedToolCategory {
	if len(hint) == 0 {
		return nil
	}

	present := make(map[string]bool, len(tools))
	for _, t := range tools {
		present[t.Name] = true
	}

	filtered := make([]types.SummarizedToolCategory, 0, len(hint))
	for _, category := range hint {
		kept := category
		kept.Tools = nil
		for _, t := range category.Tools {
			if present[t.Name] {
				kept.Tools = append(kept.Tools, t)
			}
		}
		if len(kept.Tools) > 0 {
			filtered = append(filtered, kept)
		}
	}
	return filtered
}

// buildToolsetNodes renders categorization results as tree nodes. The
// uncategorized pseudo-category and any tools the model left unassigned are
// flattened at the toolset's top level.
func buildToolsetNodes(toolsetKey string, tools []types.Tool, categories []types.SummarizedToolCategory) []virtualtool.Node {
	assigned := make(map[string]bool, len(tools))
	var nodes []virtualtool.Node

	for _, category := range categories {
		for _, t := range category.Tools {
			assigned[t.Name] = true
		}

		if category.Name == UncategorizedToolsGroupName {
			for _, t := range category.Tools {
				nodes = append(nodes, virtualtool.ToolNode{Tool: t})
			}
			continue
		}

		nodes = append(nodes, &virtualtool.VirtualTool{
			Name:        category.Name,
			Description: category.Summary,
			Contents:    flatNodes(category.Tools),
			Metadata: virtualtool.Metadata{
				ToolsetKey:     toolsetKey,
				Groups:         categories,
				CanBeCollapsed: true,
				PossiblePrefix: toolsetKey + "_",
			},
		})
	}

	for _, t := range tools {
		if !assigned[t.Name] {
			nodes = append(nodes, virtualtool.ToolNode{Tool: t})
		}
	}

	return nodes
}

// snapshotPrevious captures the named groups of the previous tree and, per
// toolset key, the categorization they were built from.
func snapshotPrevious(root *virtualtool.VirtualTool) (map[string]*virtualtool.VirtualTool, map[string][]types.SummarizedToolCategory) {
	groups := make(map[string]*virtualtool.VirtualTool)
	categories := make(map[string][]types.SummarizedToolCategory)

	for node := range root.All() {
		vt, ok := node.(*virtualtool.VirtualTool)
		if !ok {
			continue
		}
		if _, exists := groups[vt.Name]; !exists {
			groups[vt.Name] = vt
		}
		if vt.Metadata.ToolsetKey != "" && len(vt.Metadata.Groups) > 0 {
			if _, exists := categories[vt.Metadata.ToolsetKey]; !exists {
				categories[vt.Metadata.ToolsetKey] = vt.Metadata.Groups
			}
		}
	}

	return groups, categories
}

// carryOverState copies expansion state from same-named groups in the
// previous tree.
func carryOverState(root *virtualtool.VirtualTool, prev map[string]*virtualtool.VirtualTool) {
	for node := range root.All() {
		vt, ok := node.(*virtualtool.VirtualTool)
		if !ok {
			continue
		}
		if old, exists := prev[vt.Name]; exists {
			vt.IsExpanded = old.IsExpanded
			vt.Metadata.WasExpandedByDefault = old.Metadata.WasExpandedByDefault
			vt.LastUsedOnTurn = old.LastUsedOnTurn
		}
	}
}

// partitionByToolset splits tools by toolset key, preserving both the order
// of first appearance of each toolset and tool order within a toolset.
func partitionByToolset(tools []types.Tool) (map[string][]types.Tool, []string) {
	partitions := make(map[string][]types.Tool)
	var order []string

	for _, t := range tools {
		key := t.ToolsetKey()
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], t)
	}

	return partitions, order
}

func flatNodes(tools []types.Tool) []virtualtool.Node {
	nodes := make([]virtualtool.Node, len(tools))
	for i, t := range tools {
		nodes[i] = virtualtool.ToolNode{Tool: t}
	}
	return nodes
}
