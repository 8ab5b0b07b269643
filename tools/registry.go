package tools

// Merge combines tool sets in precedence order. A later definition with the
// same name replaces an earlier one but keeps the earlier position, so the
// tool list sent to the model stays stable across requests.
func Merge(sets ...[]ToolDefinition) []ToolDefinition {
	var out []ToolDefinition
	index := map[string]int{}
	for _, set := range sets {
		for _, d := range set {
			if d.Name == "" {
				continue
			}
			if i, ok := index[d.Name]; ok {
				out[i] = d
				continue
			}
			index[d.Name] = len(out)
			out = append(out, d)
		}
	}
	return out
}

// Find returns the definition named name.
func Find(defs []ToolDefinition, name string) (*ToolDefinition, bool) {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i], true
		}
	}
	return nil, false
}

// Names lists tool names in order.
func Names(defs []ToolDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}
