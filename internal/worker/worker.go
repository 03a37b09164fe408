// Package worker implements the Worker of spec §4.E: one goroutine-backed
// unit owning a Source Adapter and a Filter Engine, driven by the adapter's
// monitor callback. Grounded on rclone's backend Fs lifecycle (connect,
// monitor, process) and the original Worker/WorkerThread split.
package worker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/filter"
	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/metrics"
	"github.com/TransportDebuger/filterservice/internal/monitor"
	"github.com/TransportDebuger/filterservice/internal/reflist"
	"github.com/TransportDebuger/filterservice/internal/source"
)

// State is the Worker's state machine (§4.E).
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	default:
		return "STOPPED"
	}
}

var instanceCounter int64

// nextInstance returns a monotonic process-wide instance number (§4.E).
func nextInstance() int64 { return atomic.AddInt64(&instanceCounter, 1) }

// Worker owns one Source Adapter and one Filter Engine, derived from a
// SourceDescriptor (§4.E).
type Worker struct {
	desc     config.SourceDescriptor
	identity string

	log     *logging.Facade
	metrics *metrics.Registry
	store   *reflist.Store

	mu         sync.Mutex
	state      State
	processing bool
	fatal      bool

	adapter source.Adapter
	engine  *filter.Engine

	filesFailed int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Worker bound to desc; the adapter and filter engine are
// created but not connected until Start.
func New(desc config.SourceDescriptor, log *logging.Facade, reg *metrics.Registry, store *reflist.Store) (*Worker, error) {
	adapter, err := source.New(desc, log)
	if err != nil {
		return nil, err
	}
	w := &Worker{
		desc:     desc,
		identity: fmt.Sprintf("%s#%d", desc.Name, nextInstance()),
		log:      log,
		metrics:  reg,
		store:    store,
		adapter:  adapter,
		engine:   filter.New(desc.Filter, store),
	}
	return w, nil
}

// Identity returns the "<name>#<instance>" tag (§4.E).
func (w *Worker) Identity() string { return w.identity }

// GetConfig returns the SourceDescriptor this Worker was built from.
func (w *Worker) GetConfig() config.SourceDescriptor { return w.desc }

// Start validates destination directories, connects the adapter, begins
// monitoring and spawns the service goroutine (§4.E Start).
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateStopped {
		return nil
	}
	w.fatal = false
	for _, dir := range []string{w.desc.ProcessedDir, w.desc.ExcludedDir, w.desc.BadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("worker %s: cannot prepare %s: %w", w.identity, dir, err)
		}
	}
	if err := w.adapter.Connect(); err != nil {
		if fserrors.IsFatal(err) {
			w.fatal = true
			w.log.Errorf("worker %s: fatal connect error, worker will not be restarted: %v", w.identity, err)
		}
		return fmt.Errorf("worker %s: connect: %w", w.identity, err)
	}
	w.adapter.SetCallback(w.handleEvent)
	if err := w.adapter.StartMonitoring(); err != nil {
		return fmt.Errorf("worker %s: start monitoring: %w", w.identity, err)
	}

	w.state = StateRunning
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.serviceLoop(w.stopCh)
	return nil
}

// serviceLoop blocks on shutdown signaling and emits periodic statistics
// (§4.E Start, "service thread").
func (w *Worker) serviceLoop(stop chan struct{}) {
	defer w.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			failed := w.filesFailed
			state := w.state
			w.mu.Unlock()
			w.log.Debugf("worker %s: state=%s files_failed=%d", w.identity, state, failed)
		}
	}
}

// Pause sets the RUNNING -> PAUSED transition (§4.E).
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRunning {
		w.state = StatePaused
	}
}

// Resume sets the PAUSED -> RUNNING transition (§4.E).
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StatePaused {
		w.state = StateRunning
	}
}

// IsAlive reports whether the Worker is RUNNING or PAUSED (i.e. not
// STOPPED) for the Supervisor's healthCheck (§4.F).
func (w *Worker) IsAlive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state != StateStopped
}

func (w *Worker) IsPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StatePaused
}

// IsFatal reports whether Start last failed with a fatal adapter error
// (§4.F healthCheck must not keep restarting such a worker).
func (w *Worker) IsFatal() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fatal
}

// Stop resets running/paused, stops the adapter, disconnects and joins the
// service goroutine (§4.E stop).
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopped
	stop := w.stopCh
	w.mu.Unlock()

	w.adapter.StopMonitoring()
	close(stop)
	w.wg.Wait()
	return w.adapter.Disconnect()
}

// StopGracefully polls processing at <=10ms intervals until clear, then
// calls Stop (§4.E stopGracefully).
func (w *Worker) StopGracefully() error {
	for {
		w.mu.Lock()
		busy := w.processing
		w.mu.Unlock()
		if !busy {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return w.Stop()
}

// Restart is stop + short sleep + start, preserving config (§4.E).
func (w *Worker) Restart() error {
	if err := w.StopGracefully(); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return w.Start()
}

// handleEvent is the adapter monitor callback; it implements §4.E's
// File handling steps 1-7.
func (w *Worker) handleEvent(ev monitor.Event) {
	if ev.Kind != monitor.Created {
		return
	}
	if !source.MaskMatch(w.desc.FileMask, filepath.Base(ev.Path)) {
		return
	}

	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	w.processing = true
	w.mu.Unlock()

	start := time.Now()
	w.processFile(ev.Path)
	elapsed := float64(time.Since(start).Milliseconds())
	if w.metrics != nil {
		w.metrics.RecordTaskTime("file_processing_time", elapsed)
	}

	w.mu.Lock()
	w.processing = false
	w.mu.Unlock()
}

func (w *Worker) processFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.log.Warningf("worker %s: stat %s failed: %v", w.identity, path, err)
		return
	}
	digest, err := hashFile(path)
	if err != nil {
		w.log.Warningf("worker %s: hash %s failed: %v", w.identity, path, err)
	} else {
		w.log.Infof("worker %s: processing %s (%d bytes, sha256=%s)", w.identity, path, info.Size(), digest[:8])
	}

	if w.desc.FilteringEnabled {
		w.processWithFilter(path)
		return
	}
	dst := filepath.Join(w.desc.ProcessedDir, filepath.Base(path))
	if err := moveOrCopy(path, dst); err != nil {
		w.log.Errorf("worker %s: move %s -> %s failed: %v", w.identity, path, dst, err)
	}
}

func (w *Worker) processWithFilter(path string) {
	_, err := w.engine.Process(path, w.desc.FilteredTemplate, w.desc.ExcludedTemplate, w.desc.ProcessedDir, w.desc.ExcludedDir)
	if err != nil {
		w.log.Errorf("worker %s: filter %s failed: %v", w.identity, path, err)
		w.mu.Lock()
		w.filesFailed++
		w.mu.Unlock()
		if w.metrics != nil {
			w.metrics.Increment("files_failed", 1)
		}
		if w.desc.BadDir != "" {
			dst := filepath.Join(w.desc.BadDir, filepath.Base(path))
			if merr := moveOrCopy(path, dst); merr != nil {
				w.log.Errorf("worker %s: move to bad_dir failed: %v", w.identity, merr)
			}
		}
		return
	}
	if err := os.Remove(path); err != nil {
		w.log.Warningf("worker %s: remove %s after filtering failed: %v", w.identity, path, err)
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// moveOrCopy renames when src and dst share a device, otherwise copies and
// removes the source (§4.E Move discipline).
func moveOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
