package config

import "strings"

// deepCopyMap returns a recursive copy of m so callers can patch it without
// mutating the caller's tree (needed for the reload-transaction's
// copy-on-write semantics).
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// deepPatch recursively merges patch onto base (patch wins on conflicts),
// matching the "defaults deep-patched by environments[env]" rule of §4.H.
// Slices are replaced wholesale rather than element-merged, matching JSON
// Merge Patch (RFC 7396) semantics the original ConfigManager used via
// nlohmann::json::merge_patch.
func deepPatch(base, patch map[string]interface{}) map[string]interface{} {
	out := deepCopyMap(base)
	for k, pv := range patch {
		if bv, ok := out[k]; ok {
			bMap, bIsMap := bv.(map[string]interface{})
			pMap, pIsMap := pv.(map[string]interface{})
			if bIsMap && pIsMap {
				out[k] = deepPatch(bMap, pMap)
				continue
			}
		}
		out[k] = deepCopyValue(pv)
	}
	return out
}

// setDotPath sets tree[a][b][c]=value for a dot-separated key path "a.b.c",
// creating intermediate maps as needed. Used by ApplyOverrides for
// --override KEY:VAL.
func setDotPath(tree map[string]interface{}, keyPath string, value string) {
	parts := strings.Split(keyPath, ".")
	cur := tree
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[part] = next
		}
		cur = next
	}
}
