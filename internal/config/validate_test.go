package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSourceMap() map[string]interface{} {
	return map[string]interface{}{
		"name":          "drop",
		"kind":          "LOCAL",
		"location":      "/data/drop",
		"file_mask":     "*.xml",
		"processed_dir": "/data/processed",
	}
}

func TestValidateSourcesRequiresFields(t *testing.T) {
	m := validSourceMap()
	delete(m, "file_mask")
	err := validateSources([]interface{}{m})
	assert.Error(t, err)
}

func TestValidateSourcesSMBRequiresUsername(t *testing.T) {
	m := validSourceMap()
	m["kind"] = "SMB"
	err := validateSources([]interface{}{m})
	assert.Error(t, err)

	m["params"] = map[string]interface{}{"username": "svc"}
	assert.NoError(t, validateSources([]interface{}{m}))
}

func TestValidateSourcesFTPRequiresCredentials(t *testing.T) {
	m := validSourceMap()
	m["kind"] = "FTP"
	m["params"] = map[string]interface{}{"username": "svc"}
	err := validateSources([]interface{}{m})
	assert.Error(t, err, "FTP also requires password")

	m["params"] = map[string]interface{}{"username": "svc", "password": "secret"}
	assert.NoError(t, validateSources([]interface{}{m}))
}

func TestValidateLoggingRequiresPathForFileSinks(t *testing.T) {
	err := validateLogging([]interface{}{
		map[string]interface{}{"type": "sync_file", "level": "info"},
	})
	assert.Error(t, err)

	err = validateLogging([]interface{}{
		map[string]interface{}{"type": "sync_file", "level": "info", "path": "/var/log/a.log"},
	})
	assert.NoError(t, err)
}

func TestValidateLoggingRejectsUnknownType(t *testing.T) {
	err := validateLogging([]interface{}{
		map[string]interface{}{"type": "syslog"},
	})
	assert.Error(t, err)
}

func TestValidateNilSectionsAreNoOps(t *testing.T) {
	assert.NoError(t, validateSources(nil))
	assert.NoError(t, validateLogging(nil))
}
