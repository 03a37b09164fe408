package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepPatchOverridesScalar(t *testing.T) {
	base := map[string]interface{}{"level": "info", "path": "/var/log/a.log"}
	patch := map[string]interface{}{"level": "debug"}
	out := deepPatch(base, patch)
	assert.Equal(t, "debug", out["level"])
	assert.Equal(t, "/var/log/a.log", out["path"])
}

func TestDeepPatchMergesNestedMaps(t *testing.T) {
	base := map[string]interface{}{
		"rotation": map[string]interface{}{"mode": "size", "max_bytes": int64(1024)},
	}
	patch := map[string]interface{}{
		"rotation": map[string]interface{}{"mode": "time"},
	}
	out := deepPatch(base, patch)
	rot := out["rotation"].(map[string]interface{})
	assert.Equal(t, "time", rot["mode"])
	assert.Equal(t, int64(1024), rot["max_bytes"])
}

func TestDeepPatchReplacesSlicesWholesale(t *testing.T) {
	base := map[string]interface{}{
		"sources": []interface{}{"a", "b", "c"},
	}
	patch := map[string]interface{}{
		"sources": []interface{}{"x"},
	}
	out := deepPatch(base, patch)
	assert.Equal(t, []interface{}{"x"}, out["sources"])
}

func TestDeepPatchDoesNotMutateBase(t *testing.T) {
	base := map[string]interface{}{"a": map[string]interface{}{"b": "orig"}}
	patch := map[string]interface{}{"a": map[string]interface{}{"b": "new"}}
	_ = deepPatch(base, patch)
	assert.Equal(t, "orig", base["a"].(map[string]interface{})["b"])
}

func TestSetDotPathCreatesIntermediateMaps(t *testing.T) {
	tree := map[string]interface{}{}
	setDotPath(tree, "defaults.logging.level", "debug")
	defaults := tree["defaults"].(map[string]interface{})
	logging := defaults["logging"].(map[string]interface{})
	assert.Equal(t, "debug", logging["level"])
}

func TestSetDotPathOverwritesScalarWithMap(t *testing.T) {
	tree := map[string]interface{}{"a": "scalar"}
	setDotPath(tree, "a.b", "v")
	a := tree["a"].(map[string]interface{})
	assert.Equal(t, "v", a["b"])
}
