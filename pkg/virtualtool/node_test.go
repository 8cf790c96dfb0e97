package virtualtool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/toolgroups/pkg/types"
)

func tool(name string) types.Tool {
	return types.Tool{Name: name, Description: "does " + name, Source: types.ExtensionSource("ext1")}
}

func TestVirtualTool_Tools(t *testing.T) {
	root := &VirtualTool{
		Name: "root",
		Contents: []Node{
			ToolNode{Tool: tool("a")},
			&VirtualTool{
				Name: "group",
				Contents: []Node{
					ToolNode{Tool: tool("b")},
					&VirtualTool{
						Name:     "nested",
						Contents: []Node{ToolNode{Tool: tool("c")}},
					},
				},
			},
			ToolNode{Tool: tool("d")},
		},
	}

	var names []string
	for tl := range root.Tools() {
		names = append(names, tl.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)

	// The iterator is restartable.
	count := 0
	for range root.Tools() {
		count++
	}
	assert.Equal(t, 4, count)
}

func TestVirtualTool_ToolsEarlyStop(t *testing.T) {
	root := &VirtualTool{
		Name: "root",
		Contents: []Node{
			ToolNode{Tool: tool("a")},
			&VirtualTool{Name: "g", Contents: []Node{ToolNode{Tool: tool("b")}}},
			ToolNode{Tool: tool("c")},
		},
	}

	var names []string
	for tl := range root.Tools() {
		names = append(names, tl.Name)
		if len(names) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestVirtualTool_All(t *testing.T) {
	inner := &VirtualTool{Name: "inner", Contents: []Node{ToolNode{Tool: tool("b")}}}
	root := &VirtualTool{
		Name: "root",
		Contents: []Node{
			ToolNode{Tool: tool("a")},
			inner,
		},
	}

	var names []string
	for n := range root.All() {
		names = append(names, n.NodeName())
	}
	assert.Equal(t, []string{"a", "inner", "b"}, names)
}

func TestCloneWithPrefix(t *testing.T) {
	vt := &VirtualTool{
		Name:        "My Tools",
		Description: "a group",
		Contents:    []Node{ToolNode{Tool: tool("a")}},
		Metadata:    Metadata{PossiblePrefix: "ext_"},
		IsExpanded:  true,
	}

	clone := vt.CloneWithPrefix("ext_")
	require.NotSame(t, vt, clone)
	assert.Equal(t, "activate_ext_my_tools", clone.Name)
	assert.Equal(t, vt.Description, clone.Description)
	assert.Equal(t, vt.Contents, clone.Contents)
	assert.True(t, clone.IsExpanded)

	// The original keeps its name.
	assert.Equal(t, "My Tools", vt.Name)
}

func TestCloneWithPrefix_StripsExistingActivationPrefix(t *testing.T) {
	vt := &VirtualTool{
		Name:     "activate_search",
		Metadata: Metadata{PossiblePrefix: "mcp_"},
	}

	clone := vt.CloneWithPrefix("mcp_")
	assert.Equal(t, "activate_mcp_search", clone.Name)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"x", "x"},
		{"My Tools", "my_tools"},
		{"a--b__c", "a_b_c"},
		{"  lead trail  ", "lead_trail"},
		{"MiXeD123", "mixed123"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in), "input %q", tt.in)
	}
}
