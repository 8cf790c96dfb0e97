package grouper

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/flowbaker/toolgroups/pkg/types"
	"github.com/flowbaker/toolgroups/pkg/virtualtool"
)

const predictedGroupDescription = "Tools predicted to be relevant to the current request. They are ready to call; prefer them before activating other groups."

// RecomputeEmbeddingRankings rebuilds the predicted-relevant group for a new
// query against the tree's current tools. It never fails; on any degradation
// the group is simply absent or left as it was.
func (g *Grouper) RecomputeEmbeddingRankings(ctx context.Context, query string, root *virtualtool.VirtualTool) {
	var tools []types.Tool
	for t := range root.Tools() {
		tools = append(tools, t)
	}

	predicted := g.computePredictedGroup(ctx, query, tools)
	mergePredictedGroup(root, predicted)
}

// computePredictedGroup ranks non-builtin tools against the query embedding
// and wraps the winners in the synthetic always-open group. Returns nil when
// there is nothing to predict: no computer, no query, embedding failure, or
// no candidates.
func (g *Grouper) computePredictedGroup(ctx context.Context, query string, tools []types.Tool) *virtualtool.VirtualTool {
	if g.computer == nil || query == "" {
		return nil
	}

	var candidates []types.Tool
	for _, t := range tools {
		if t.Source.Kind != types.SourceBuiltin && t.Name != "" {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	queryEmbedding, ok := g.computer.EmbedQuery(ctx, query)
	if !ok {
		return nil
	}

	ranked := g.computer.RetrieveSimilarForAvailableTools(ctx, queryEmbedding, candidates, PredictedGroupSize)
	if len(ranked) == 0 {
		return nil
	}

	byName := make(map[string]types.Tool, len(candidates))
	for _, t := range candidates {
		byName[t.Name] = t
	}

	contents := make([]virtualtool.Node, 0, len(ranked))
	for _, name := range ranked {
		if t, ok := byName[name]; ok {
			contents = append(contents, virtualtool.ToolNode{Tool: t})
		}
	}

	log.Debug().Int("tool_count", len(contents)).Msg("Built predicted-relevant group")

	return &virtualtool.VirtualTool{
		Name:        EmbeddingsGroupName,
		Description: predictedGroupDescription,
		Contents:    contents,
		Metadata: virtualtool.Metadata{
			WasExpandedByDefault: true,
			CanBeCollapsed:       false,
		},
		IsExpanded: true,
	}
}

// mergePredictedGroup splices the predicted group in at index 0, replacing a
// previous one in place if the tree already has it. A nil group leaves the
// tree untouched.
func mergePredictedGroup(root *virtualtool.VirtualTool, predicted *virtualtool.VirtualTool) {
	if predicted == nil {
		return
	}

	for i, n := range root.Contents {
		if vt, ok := n.(*virtualtool.VirtualTool); ok && vt.Name == EmbeddingsGroupName {
			root.Contents[i] = predicted
			return
		}
	}

	root.Contents = append([]virtualtool.Node{predicted}, root.Contents...)
}
