package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
defaults:
  sources:
    - name: drop
      kind: LOCAL
      location: /data/drop
      file_mask: "*.xml"
      processed_dir: /data/processed
      filtering_enabled: true
  logging:
    - type: console
      level: info
environments:
  production:
    sources:
      - name: drop
        kind: LOCAL
        location: /data/prod/drop
        file_mask: "*.xml"
        processed_dir: /data/prod/processed
        filtering_enabled: true
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProviderInitializeAndGetMerged(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	merged, err := p.GetMerged("production")
	require.NoError(t, err)
	require.Len(t, merged.Sources, 1)
	assert.Equal(t, "/data/prod/drop", merged.Sources[0].Location)
}

func TestProviderGetMergedFallsBackToDefaults(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	merged, err := p.GetMerged("staging")
	require.NoError(t, err)
	require.Len(t, merged.Sources, 1)
	assert.Equal(t, "/data/drop", merged.Sources[0].Location)
}

func TestProviderInitializeRejectsMissingDefaults(t *testing.T) {
	path := writeFixture(t, "environments: {}\n")
	p := NewProvider()
	err := p.Initialize(path)
	require.Error(t, err)
}

func TestProviderApplyOverridesRejectsInvalidResult(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	_, err := p.GetMerged("production")
	require.NoError(t, err)

	// overriding sources with a non-array scalar fails validation; the
	// prior tree must remain in place.
	err = p.ApplyOverrides(map[string]string{"defaults.sources": "oops"})
	require.Error(t, err)

	merged, err := p.GetMerged("production")
	require.NoError(t, err)
	require.Len(t, merged.Sources, 1)
}

func TestProviderApplyOverridesValidScalar(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	require.NoError(t, p.ApplyOverrides(map[string]string{
		"defaults.note": "hello",
	}))

	current := p.GetCurrent()
	defaults := current["defaults"].(map[string]interface{})
	assert.Equal(t, "hello", defaults["note"])
}

func TestTransactionRollsBackOnReloadFailure(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	before, err := p.GetMerged("production")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("environments: {}\n"), 0o644))

	txn := Begin(p)
	err = txn.Reload()
	require.Error(t, err)

	after, err := p.GetMerged("production")
	require.NoError(t, err)
	assert.Equal(t, before.Sources[0].Location, after.Sources[0].Location)
}

func TestTransactionCommitKeepsReloadedTree(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	p := NewProvider()
	require.NoError(t, p.Initialize(path))

	updated := `
defaults:
  sources:
    - name: drop
      kind: LOCAL
      location: /data/drop2
      file_mask: "*.xml"
      processed_dir: /data/processed
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	txn := Begin(p)
	require.NoError(t, txn.Reload())
	txn.Commit()

	merged, err := p.GetMerged("production")
	require.NoError(t, err)
	assert.Equal(t, "/data/drop2", merged.Sources[0].Location)
}
