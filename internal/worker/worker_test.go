package worker

import (
	"os"
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

func newTestWorker(t *testing.T, desc config.SourceDescriptor) *Worker {
	t.Helper()
	log := logging.New()
	reg := metrics.New("test")
	require.NoError(t, reg.RegisterCounter("files_failed", ""))
	store := reflist.New(log)
	w, err := New(desc, log, reg, store)
	require.NoError(t, err)
	return w
}

func TestIdentityIsUniquePerInstance(t *testing.T) {
	root := t.TempDir()
	desc := config.SourceDescriptor{
		Name: "drop", Kind: config.KindLocal, Location: root,
		FileMask: "*.xml", ProcessedDir: filepath.Join(root, "processed"),
		CheckInterval: time.Second,
	}
	w1 := newTestWorker(t, desc)
	w2 := newTestWorker(t, desc)
	assert.NotEqual(t, w1.Identity(), w2.Identity())
	assert.Contains(t, w1.Identity(), "drop#")
}

func TestStartStopLifecycle(t *testing.T) {
	root := t.TempDir()
	desc := config.SourceDescriptor{
		Name: "drop", Kind: config.KindLocal, Location: root,
		FileMask: "*.xml", ProcessedDir: filepath.Join(root, "processed"),
		CheckInterval: 30 * time.Millisecond,
	}
	w := newTestWorker(t, desc)

	require.NoError(t, w.Start())
	assert.True(t, w.IsAlive())
	assert.False(t, w.IsPaused())

	w.Pause()
	assert.True(t, w.IsPaused())
	w.Resume()
	assert.False(t, w.IsPaused())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsAlive())
}

func TestProcessingMovesFileWithoutFiltering(t *testing.T) {
	root := t.TempDir()
	processed := filepath.Join(root, "processed")
	desc := config.SourceDescriptor{
		Name: "drop", Kind: config.KindLocal, Location: root,
		FileMask: "*.xml", ProcessedDir: processed,
		FilteringEnabled: false,
		CheckInterval:    30 * time.Millisecond,
	}
	w := newTestWorker(t, desc)
	require.NoError(t, w.Start())
	defer w.Stop()

	input := filepath.Join(root, "order.xml")
	require.NoError(t, os.WriteFile(input, []byte("<a/>"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(processed, "order.xml"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	_, err := os.Stat(input)
	assert.True(t, os.IsNotExist(err), "input file must be moved, not left in place")
}

func TestHandleEventMatchesFileMaskCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	processed := filepath.Join(root, "processed")
	desc := config.SourceDescriptor{
		Name: "drop", Kind: config.KindLocal, Location: root,
		FileMask: "*.xml", ProcessedDir: processed,
		FilteringEnabled: false,
		CheckInterval:    30 * time.Millisecond,
	}
	w := newTestWorker(t, desc)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.xml"), []byte("<a/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.XML"), []byte("<a/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("no"), 0o644))

	require.Eventually(t, func() bool {
		_, lowerErr := os.Stat(filepath.Join(processed, "a.xml"))
		_, upperErr := os.Stat(filepath.Join(processed, "a.XML"))
		return lowerErr == nil && upperErr == nil
	}, 2*time.Second, 20*time.Millisecond, "both a.xml and a.XML must be processed under a case-insensitive *.xml mask")

	_, err := os.Stat(filepath.Join(processed, "a.txt"))
	assert.True(t, os.IsNotExist(err), "a.txt must not match *.xml")
}

func TestStopGraceFullyWaitsForProcessing(t *testing.T) {
	root := t.TempDir()
	desc := config.SourceDescriptor{
		Name: "drop", Kind: config.KindLocal, Location: root,
		FileMask: "*.xml", ProcessedDir: filepath.Join(root, "processed"),
		CheckInterval: 30 * time.Millisecond,
	}
	w := newTestWorker(t, desc)
	require.NoError(t, w.Start())

	// simulate an in-flight file; it is cleared 50ms later, under the same
	// lock StopGracefully polls with
	w.mu.Lock()
	w.processing = true
	w.mu.Unlock()
	released := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		w.mu.Lock()
		close(released)
		w.processing = false
		w.mu.Unlock()
	}()

	require.NoError(t, w.StopGracefully())
	select {
	case <-released:
	default:
		t.Fatal("StopGracefully returned while a file was still processing")
	}
	assert.False(t, w.IsAlive())
}
