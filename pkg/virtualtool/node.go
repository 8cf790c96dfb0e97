// Package virtualtool implements the tree shown to the model in place of a
// flat tool list: individual tools interleaved with collapsible groups
// ("virtual tools") that the model can activate to reveal their contents.
package virtualtool

import (
	"iter"
	"strings"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// ActivationPrefix is prepended to a virtual tool's name when it has to be
// renamed to resolve a collision.
const ActivationPrefix = "activate_"

// Node is either a ToolNode or a *VirtualTool. The union is sealed; callers
// discriminate with a single type switch.
type Node interface {
	// NodeName returns the name the node occupies in its parent.
	NodeName() string

	isNode()
}

// ToolNode is a leaf wrapping one real tool.
type ToolNode struct {
	Tool types.Tool
}

func (n ToolNode) NodeName() string { return n.Tool.Name }
func (n ToolNode) isNode()          {}

// Metadata carries grouping bookkeeping for a virtual tool.
type Metadata struct {
	// ToolsetKey is the partition the group was built from.
	ToolsetKey string

	// Groups is the categorization the group's toolset resolved to, kept so
	// the next pass can feed it back as a stability hint.
	Groups []types.SummarizedToolCategory

	// WasExpandedByDefault records that the budget pass expanded the group
	// rather than the model or the user.
	WasExpandedByDefault bool

	// CanBeCollapsed is false only for synthetic groups that must stay open,
	// such as the predicted-relevant group.
	CanBeCollapsed bool

	// PossiblePrefix, when non-empty, lets deduplication rename the group to
	// ActivationPrefix + PossiblePrefix + name instead of dropping it.
	PossiblePrefix string
}

// VirtualTool is an activatable group of tools and nested groups. Sibling
// names within one tree are unique; children are owned exclusively by their
// parent.
type VirtualTool struct {
	Name        string
	Description string
	Contents    []Node
	Metadata    Metadata

	IsExpanded     bool
	LastUsedOnTurn int
}

func (v *VirtualTool) NodeName() string { return v.Name }
func (v *VirtualTool) isNode()          {}

// Tools iterates depth-first over every leaf tool in the subtree, expanded
// or not. The sequence is restartable.
func (v *VirtualTool) Tools() iter.Seq[types.Tool] {
	return func(yield func(types.Tool) bool) {
		walkTools(v.Contents, yield)
	}
}

func walkTools(nodes []Node, yield func(types.Tool) bool) bool {
	for _, n := range nodes {
		switch n := n.(type) {
		case ToolNode:
			if !yield(n.Tool) {
				return false
			}
		case *VirtualTool:
			if !walkTools(n.Contents, yield) {
				return false
			}
		}
	}
	return true
}

// All iterates depth-first over every node in the subtree, yielding virtual
// tools before their contents. The receiver itself is not yielded.
func (v *VirtualTool) All() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walkAll(v.Contents, yield)
	}
}

func walkAll(nodes []Node, yield func(Node) bool) bool {
	for _, n := range nodes {
		if !yield(n) {
			return false
		}
		if vt, ok := n.(*VirtualTool); ok {
			if !walkAll(vt.Contents, yield) {
				return false
			}
		}
	}
	return true
}

// CloneWithPrefix returns a copy of the group renamed for collision
// resolution: ActivationPrefix + prefix + the normalized original name. The
// clone shares contents, metadata and expansion state with the original.
func (v *VirtualTool) CloneWithPrefix(prefix string) *VirtualTool {
	clone := *v
	clone.Name = ActivationPrefix + prefix + normalizeName(strings.TrimPrefix(v.Name, ActivationPrefix))
	return &clone
}

// normalizeName lowercases and replaces every run of non-alphanumeric
// characters with a single underscore, so renamed groups stay valid tool
// names.
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		alnum := r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
