package categorize

import (
	"encoding/json"
	"strings"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// extractJSON pulls the first parseable JSON array or object out of an LLM
// response. Models wrap their answer in markdown code fences or preface it
// with prose often enough that strict parsing is useless; fenced blocks are
// tried first, then the text is scanned for the first '[' or '{'.
func extractJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)

	for _, block := range fencedBlocks(content) {
		if raw, ok := decodeFirstValue(block); ok {
			return raw, nil
		}
	}

	if start := strings.IndexAny(content, "[{"); start >= 0 {
		if raw, ok := decodeFirstValue(content[start:]); ok {
			return raw, nil
		}
	}

	return nil, types.ErrNoJSONFound
}

// fencedBlocks returns the contents of every ``` fence in order. The info
// string on the opening fence (e.g. "json") is dropped.
func fencedBlocks(content string) []string {
	var blocks []string
	for {
		start := strings.Index(content, "```")
		if start < 0 {
			return blocks
		}
		content = content[start+3:]
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		}

		end := strings.Index(content, "```")
		if end < 0 {
			return blocks
		}
		blocks = append(blocks, strings.TrimSpace(content[:end]))
		content = content[end+3:]
	}
}

// decodeFirstValue decodes one JSON value from the start of s, ignoring any
// trailing text, and reports whether it is an array or object.
func decodeFirstValue(s string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		return nil, false
	}

	var raw json.RawMessage
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	if err := decoder.Decode(&raw); err != nil {
		return nil, false
	}
	return raw, true
}
