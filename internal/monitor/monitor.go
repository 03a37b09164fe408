// Package monitor implements the Change Monitor of spec §4.B: a unified
// push/poll event stream over a path, with automatic reconnection,
// grounded on rclone's backend/local changenotify_other.go (native fsnotify
// watch) and the original's polling design for non-notify-capable sources.
package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TransportDebuger/filterservice/internal/logging"
)

// EventKind mirrors FileEvent.kind in §3.
type EventKind int

// Event kinds.
const (
	Created EventKind = iota
	Deleted
	Modified
	Renamed
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a FileEvent per §3: ordering is per-path FIFO, unspecified
// across paths.
type Event struct {
	Kind EventKind
	Path string
}

// Callback is invoked on the monitor's dedicated background thread. It must
// return quickly and be thread-safe (§4.B).
type Callback func(Event)

// Lister is implemented by adapters that support only polling (SMB and FTP
// here): List returns the current file paths under the monitored root, in
// the form the adapter's own List reports them.
type Lister interface {
	List() ([]string, error)
}

// Monitor watches one path and invokes a callback on change, in either
// native-watch mode (fsnotify) or polling mode (Lister), reconnecting on
// loss per §4.B.
type Monitor struct {
	path          string
	callback      Callback
	checkInterval time.Duration
	lister        Lister // nil => native-watch mode
	log           *logging.Facade

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Monitor. If lister is nil, native OS watch events are
// used (LOCAL); otherwise polling mode is used (SMB and FTP), listing every
// checkInterval.
func New(path string, checkInterval time.Duration, lister Lister, log *logging.Facade, cb Callback) *Monitor {
	return &Monitor{
		path:          path,
		callback:      cb,
		checkInterval: checkInterval,
		lister:        lister,
		log:           log,
	}
}

// Start begins monitoring. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	if m.lister != nil {
		go m.pollLoop()
	} else {
		go m.watchLoop()
	}
}

// Stop halts monitoring. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()
	m.wg.Wait()
}

// pollLoop implements polling mode: list path every checkInterval,
// set-difference against the last listing to synthesize CREATED events.
func (m *Monitor) pollLoop() {
	defer m.wg.Done()
	known := make(map[string]struct{})

	connected := m.establishListing(known)
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !connected {
				connected = m.reconnectPoll(known)
				continue
			}
			entries, err := m.lister.List()
			if err != nil {
				m.log.Infof("monitor: lost path %s: %v", m.path, err)
				connected = false
				continue
			}
			current := make(map[string]struct{}, len(entries))
			for _, e := range entries {
				current[e] = struct{}{}
				if _, seen := known[e]; !seen {
					m.callback(Event{Kind: Created, Path: e})
				}
			}
			known = current
		}
	}
}

// reconnectPoll retries listing path every 5s until it succeeds or Stop is
// called (§4.B), logging exactly one recovery line.
func (m *Monitor) reconnectPoll(known map[string]struct{}) bool {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return false
		case <-ticker.C:
			if _, err := m.lister.List(); err == nil {
				m.log.Infof("monitor: restored path %s", m.path)
				return true
			}
		}
	}
}

// establishListing takes the first listing; every entry already present is
// reported as CREATED once.
func (m *Monitor) establishListing(known map[string]struct{}) bool {
	entries, err := m.lister.List()
	if err != nil {
		m.log.Infof("monitor: lost path %s: %v", m.path, err)
		return false
	}
	for _, e := range entries {
		known[e] = struct{}{}
		m.callback(Event{Kind: Created, Path: e})
	}
	return true
}

// watchLoop implements native-watch mode via fsnotify, reconnecting on
// teardown the same way rclone's local backend's ChangeNotify does.
func (m *Monitor) watchLoop() {
	defer m.wg.Done()

	for {
		watcher, err := m.establishWatch()
		if err != nil {
			// watch setup failed; retry after 5s unless stopped
			select {
			case <-m.stopCh:
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if watcher == nil {
			return // Stop() was called while reconnecting
		}
		if !m.consumeEvents(watcher) {
			watcher.Close()
			return
		}
		watcher.Close()
	}
}

// establishWatch creates an fsnotify watcher rooted at m.path, retrying
// every 5s until the path exists or Stop is called.
func (m *Monitor) establishWatch() (*fsnotify.Watcher, error) {
	if _, err := os.Stat(m.path); err != nil {
		m.log.Infof("monitor: lost path %s: %v", m.path, err)
		if !m.waitForPath() {
			return nil, nil
		}
		m.log.Infof("monitor: restored path %s", m.path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(w, m.path); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (m *Monitor) waitForPath() bool {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return false
		case <-ticker.C:
			if _, err := os.Stat(m.path); err == nil {
				return true
			}
		}
	}
}

// consumeEvents reads from watcher until it errors, the path disappears, or
// Stop is called. Returns false if the caller should exit entirely (Stop).
func (m *Monitor) consumeEvents(w *fsnotify.Watcher) bool {
	for {
		select {
		case <-m.stopCh:
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true // watcher torn down; reconnect
			}
			m.translate(ev)
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
		case _, ok := <-w.Errors:
			if !ok {
				return true
			}
			return true // treat watcher error as a loss, trigger reconnect
		}
	}
}

func (m *Monitor) translate(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		m.callback(Event{Kind: Created, Path: ev.Name})
	case ev.Op&fsnotify.Remove != 0:
		m.callback(Event{Kind: Deleted, Path: ev.Name})
	case ev.Op&fsnotify.Rename != 0:
		m.callback(Event{Kind: Deleted, Path: ev.Name})
	case ev.Op&fsnotify.Write != 0:
		m.callback(Event{Kind: Modified, Path: ev.Name})
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
