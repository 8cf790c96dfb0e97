// Package hash produces the content-addressed cache keys used by the
// embedding and category caches. Keys are BLAKE3-256 digests, so a tool or
// toolset whose identifying text is unchanged maps to the same key across
// processes and restarts.
package hash

import (
	"sort"

	"github.com/zeebo/blake3"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// KeySize is the byte length of a cache key.
const KeySize = 32

// Key is a fixed-size content hash.
type Key [KeySize]byte

// ToolKey hashes a single tool's identifying text. The name and description
// are joined with a NUL byte so "ab"+"c" and "a"+"bc" hash differently.
func ToolKey(name, description string) Key {
	h := blake3.New()
	h.WriteString(name)
	h.Write([]byte{0})
	h.WriteString(description)

	var key Key
	copy(key[:], h.Sum(nil))
	return key
}

// ToolsetKey hashes the identifying text of a whole toolset. The tools are
// sorted by name first so the key is independent of provider ordering.
func ToolsetKey(tools []types.Tool) Key {
	lines := make([]string, len(tools))
	for i, t := range tools {
		lines[i] = t.Name + "\x00" + t.Description
	}
	sort.Strings(lines)

	h := blake3.New()
	for _, line := range lines {
		h.WriteString(line)
		h.Write([]byte{'\n'})
	}

	var key Key
	copy(key[:], h.Sum(nil))
	return key
}
