package grouper

import (
	"sort"

	"github.com/flowbaker/toolgroups/pkg/virtualtool"
)

// reExpandToolsToHitBudget expands collapsed top-level groups, cheapest
// first per the ranker, until the visible tool count approaches targetLimit.
// A candidate whose expansion would push the count past hardLimit stops the
// pass entirely: later candidates rank higher and would only be worse.
//
// Visible count after this pass is always <= hardLimit, and reaches past
// targetLimit only when a single expansion straddles it.
func reExpandToolsToHitBudget(root *virtualtool.VirtualTool, ranker Ranker, targetLimit, hardLimit int) {
	visibleCount := countVisible(root.Contents)
	if visibleCount > targetLimit {
		// Already over budget; expansion can only add more.
		return
	}

	var candidates []*virtualtool.VirtualTool
	for _, n := range root.Contents {
		if vt, ok := n.(*virtualtool.VirtualTool); ok && !vt.IsExpanded {
			candidates = append(candidates, vt)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return ranker(candidates[i]) < ranker(candidates[j])
	})

	for _, vt := range candidates {
		// Expanding replaces the group's single entry with its children.
		next := visibleCount - 1 + len(vt.Contents)
		if next > hardLimit {
			return
		}

		vt.IsExpanded = true
		vt.Metadata.WasExpandedByDefault = true
		visibleCount = next

		if visibleCount > targetLimit {
			return
		}
	}
}

// countVisible counts leaves reachable without expanding anything: a
// collapsed group counts as one entry, an expanded group contributes its
// children recursively, a tool counts as one.
func countVisible(nodes []virtualtool.Node) int {
	count := 0
	for _, n := range nodes {
		vt, ok := n.(*virtualtool.VirtualTool)
		if !ok {
			count++
			continue
		}
		if vt.IsExpanded {
			count += countVisible(vt.Contents)
		} else {
			count++
		}
	}
	return count
}
