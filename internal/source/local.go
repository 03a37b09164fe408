package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/monitor"
)

// localAdapter is the LOCAL kind: operations are plain filesystem
// operations rooted at desc.Location (§4.C), grounded on rclone's
// backend/local.
type localAdapter struct {
	desc config.SourceDescriptor
	log  *logging.Facade
	mask *maskMatcher

	mu        sync.Mutex
	connected bool
	mon       *monitor.Monitor
	cb        monitor.Callback
}

func newLocalAdapter(desc config.SourceDescriptor, log *logging.Facade) *localAdapter {
	return &localAdapter{desc: desc, log: log, mask: compileMask(desc.FileMask)}
}

// Connect ensures the root directory exists, creating parents if needed
// (§4.C).
func (a *localAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.desc.Location, 0o755); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "local.connect", a.desc.Location, err)
	}
	a.connected = true
	return nil
}

func (a *localAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *localAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// List returns absolute paths of regular files directly under subpath
// matching the source's file mask.
func (a *localAdapter) List(subpath string) ([]string, error) {
	root := filepath.Join(a.desc.Location, subpath)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fserrors.NewAdapter(fserrors.AdapterIo, "local.list", root, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !a.mask.Match(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(root, e.Name()))
	}
	return out, nil
}

func (a *localAdapter) Get(remote, local string) error {
	return copyFile(remote, local)
}

func (a *localAdapter) Put(local, remote string) error {
	return copyFile(local, remote)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "local.copy", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "local.copy", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "local.copy", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fserrors.NewAdapter(fserrors.AdapterIo, "local.copy", dst, err)
	}
	return nil
}

func (a *localAdapter) SetCallback(cb monitor.Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
}

// StartMonitoring begins native fsnotify watching of the root directory.
// The callback is invoked only after this call returns (§4.C).
func (a *localAdapter) StartMonitoring() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cb == nil {
		return fmt.Errorf("local: SetCallback must be called before StartMonitoring")
	}
	a.mon = monitor.New(a.desc.Location, a.desc.CheckInterval, nil, a.log, a.cb)
	a.mon.Start()
	return nil
}

func (a *localAdapter) StopMonitoring() {
	a.mu.Lock()
	mon := a.mon
	a.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
}
