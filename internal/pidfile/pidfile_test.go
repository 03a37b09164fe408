package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithNoExistingFileSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	pf, err := New(path)
	require.NoError(t, err)
	require.NoError(t, pf.Write())
	defer pf.Remove()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))
}

func TestNewRemovesStaleFileWithDeadPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	// pid 1 is unreachable from an unprivileged test process in most
	// sandboxes, so use an implausibly large pid that cannot exist instead.
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	pf, err := New(path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "stale pidfile should have been removed")

	require.NoError(t, pf.Write())
	pf.Remove()
}

func TestNewRejectsLivePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestNewRemovesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, err := New(path)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveIsNoOpWhenNotWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	pf, err := New(path)
	require.NoError(t, err)
	pf.Remove()
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.pid")
	pf, err := New(path)
	require.NoError(t, err)
	require.NoError(t, pf.Write())
	pf.Remove()
	pf.Remove()
}

func TestPathDaemonVsForeground(t *testing.T) {
	assert.Equal(t, "/var/run/filterserviced.pid", Path("filterserviced", true))

	home, _ := os.UserHomeDir()
	assert.Equal(t, home+"/.filterserviced.pid", Path("filterserviced", false))
}
