package virtualtool

// Deduplicate resolves name collisions in a flat list of nodes, in input
// order. On a collision the earlier occupant keeps the name unless it is a
// group with a PossiblePrefix, in which case the occupant is re-inserted
// under its prefixed name and the newcomer takes the original name. A
// newcomer group with a PossiblePrefix is inserted under its prefixed name
// instead. When neither side carries a usable prefix the newcomer is dropped.
//
// The result always has pairwise-unique names. The function is deterministic
// and order-sensitive; it never mutates its input nodes (renames go through
// CloneWithPrefix).
func Deduplicate(nodes []Node) []Node {
	order := make([]string, 0, len(nodes))
	byName := make(map[string]Node, len(nodes))

	insert := func(name string, n Node) {
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = n
	}

	for _, n := range nodes {
		name := n.NodeName()
		existing, ok := byName[name]
		if !ok {
			insert(name, n)
			continue
		}

		if vt, ok := existing.(*VirtualTool); ok && vt.Metadata.PossiblePrefix != "" {
			// The occupant moves to the end under its prefixed name; the
			// newcomer wins the original slot.
			for i, existingName := range order {
				if existingName == name {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
			delete(byName, name)
			renamed := vt.CloneWithPrefix(vt.Metadata.PossiblePrefix)
			insert(renamed.Name, renamed)
			insert(name, n)
			continue
		}

		if vt, ok := n.(*VirtualTool); ok && vt.Metadata.PossiblePrefix != "" {
			renamed := vt.CloneWithPrefix(vt.Metadata.PossiblePrefix)
			insert(renamed.Name, renamed)
			continue
		}

		// Plain collision with no prefix on either side: the earlier
		// occupant is kept and the newcomer dropped.
	}

	result := make([]Node, 0, len(order))
	for _, name := range order {
		result = append(result, byName[name])
	}
	return result
}
