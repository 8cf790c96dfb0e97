package types

// SourceKind identifies where a tool comes from.
type SourceKind string

const (
	SourceBuiltin   SourceKind = "builtin"
	SourceExtension SourceKind = "extension"
	SourceMCP       SourceKind = "mcp"
)

// ToolSource identifies the provider a tool belongs to. Builtin tools carry
// no identifier; extension tools carry the extension id and MCP tools carry
// the server label.
type ToolSource struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// BuiltinSource returns the source for tools shipped with the host itself.
func BuiltinSource() ToolSource {
	return ToolSource{Kind: SourceBuiltin}
}

// ExtensionSource returns the source for tools contributed by an extension.
func ExtensionSource(extensionID string) ToolSource {
	return ToolSource{Kind: SourceExtension, ID: extensionID}
}

// MCPSource returns the source for tools served by an MCP server.
func MCPSource(serverLabel string) ToolSource {
	return ToolSource{Kind: SourceMCP, ID: serverLabel}
}

// Tool is a callable tool as reported by the tool provider. This package
// never mutates tools; they are grouped, ranked and rendered as-is.
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Source      ToolSource `json:"source"`
	Tags        []string   `json:"tags,omitempty"`
}

// ToolsetKey returns the partition key for a tool: "builtin" for host tools,
// "ext_<id>" for extension tools and "mcp_<label>" for MCP tools.
func (t Tool) ToolsetKey() string {
	switch t.Source.Kind {
	case SourceExtension:
		return "ext_" + t.Source.ID
	case SourceMCP:
		return "mcp_" + t.Source.ID
	default:
		return "builtin"
	}
}
