package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvReplacesKnownVar(t *testing.T) {
	os.Setenv("FILTERSERVICE_TEST_VAR", "resolved")
	defer os.Unsetenv("FILTERSERVICE_TEST_VAR")

	tree := map[string]interface{}{
		"path": "/data/$ENV{FILTERSERVICE_TEST_VAR}/in",
	}
	out := substituteEnv(tree).(map[string]interface{})
	assert.Equal(t, "/data/resolved/in", out["path"])
}

func TestSubstituteEnvLeavesUnsetVarUnchanged(t *testing.T) {
	os.Unsetenv("FILTERSERVICE_TEST_UNSET_VAR")
	tree := map[string]interface{}{
		"path": "/data/$ENV{FILTERSERVICE_TEST_UNSET_VAR}/in",
	}
	out := substituteEnv(tree).(map[string]interface{})
	assert.Equal(t, "/data/$ENV{FILTERSERVICE_TEST_UNSET_VAR}/in", out["path"])
}

func TestSubstituteEnvRecursesIntoSlicesAndMaps(t *testing.T) {
	os.Setenv("FILTERSERVICE_TEST_VAR2", "x")
	defer os.Unsetenv("FILTERSERVICE_TEST_VAR2")

	tree := map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{"location": "$ENV{FILTERSERVICE_TEST_VAR2}/path"},
		},
	}
	out := substituteEnv(tree).(map[string]interface{})
	sources := out["sources"].([]interface{})
	first := sources[0].(map[string]interface{})
	assert.Equal(t, "x/path", first["location"])
}
