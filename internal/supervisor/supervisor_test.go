package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/metrics"
	"github.com/TransportDebuger/filterservice/internal/reflist"
)

func oneSourceConfig(root string) config.Merged {
	return config.Merged{
		Sources: []config.SourceDescriptor{
			{
				Name: "drop", Kind: config.KindLocal, Location: root,
				FileMask: "*.xml", ProcessedDir: filepath.Join(root, "processed"),
				Enabled: true, CheckInterval: 30 * time.Millisecond,
			},
		},
	}
}

func newTestSupervisor(t *testing.T, cfg config.Merged) *Supervisor {
	t.Helper()
	log := logging.New()
	reg := metrics.New("test")
	_ = reg.RegisterCounter("workers_restarted", "")
	store := reflist.New(log)
	return New(func() (config.Merged, error) { return cfg, nil }, log, reg, store)
}

func TestStartSpawnsOneWorkerPerEnabledSource(t *testing.T) {
	root := t.TempDir()
	s := newTestSupervisor(t, oneSourceConfig(root))
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Equal(t, StateRunning, s.GetState())
	assert.Equal(t, 1, s.GetWorkerCount())
}

func TestStartSkipsDisabledSources(t *testing.T) {
	root := t.TempDir()
	cfg := oneSourceConfig(root)
	cfg.Sources[0].Enabled = false
	s := newTestSupervisor(t, cfg)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Equal(t, 0, s.GetWorkerCount())
}

func TestReloadReplacesWorkerSet(t *testing.T) {
	root := t.TempDir()
	cfg := oneSourceConfig(root)
	s := newTestSupervisor(t, cfg)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.Reload())
	assert.Equal(t, StateRunning, s.GetState())
	assert.Equal(t, 1, s.GetWorkerCount())
}

func TestReloadKeepsPreviousWorkersWhenSourcesMissing(t *testing.T) {
	root := t.TempDir()
	cfg := oneSourceConfig(root)

	log := logging.New()
	reg := metrics.New("test")
	_ = reg.RegisterCounter("workers_restarted", "")
	store := reflist.New(log)

	current := cfg
	s := New(func() (config.Merged, error) { return current, nil }, log, reg, store)
	require.NoError(t, s.Start())
	defer s.Stop()
	require.Equal(t, 1, s.GetWorkerCount())

	current = config.Merged{}
	err := s.Reload()
	assert.Error(t, err)
	assert.Equal(t, StateRunning, s.GetState())
	assert.Equal(t, 1, s.GetWorkerCount(), "original worker set must survive a reload missing sources")
}

func TestStopTransitionsToStopped(t *testing.T) {
	root := t.TempDir()
	s := newTestSupervisor(t, oneSourceConfig(root))
	require.NoError(t, s.Start())

	s.Stop()
	assert.Equal(t, StateStopped, s.GetState())
	assert.Equal(t, 0, s.GetWorkerCount())
}
