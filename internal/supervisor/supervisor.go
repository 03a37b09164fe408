// Package supervisor implements the Supervisor of spec §4.F: owns the
// Worker set for the active environment, drives start/stop/reload/health
// check, grounded on rclone's backend pool lifecycle and the original
// ServiceSupervisor.
package supervisor

import (
	"fmt"
	"sync"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/metrics"
	"github.com/TransportDebuger/filterservice/internal/reflist"
	"github.com/TransportDebuger/filterservice/internal/worker"
)

// State is the Supervisor's state machine (§4.F).
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateReloading
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateReloading:
		return "RELOADING"
	case StateFatal:
		return "FATAL"
	default:
		return "STOPPED"
	}
}

// ConfigFunc is the config provider closure returning the merged
// configuration for the active environment (§4.F Contract).
type ConfigFunc func() (config.Merged, error)

// Supervisor owns the Worker set derived from one merged configuration.
type Supervisor struct {
	getConfig ConfigFunc
	log       *logging.Facade
	metrics   *metrics.Registry
	store     *reflist.Store

	mu      sync.Mutex
	state   State
	workers []*worker.Worker

	workersRestarted int64
}

// New builds a Supervisor bound to the given config provider closure.
func New(getConfig ConfigFunc, log *logging.Facade, reg *metrics.Registry, store *reflist.Store) *Supervisor {
	return &Supervisor{getConfig: getConfig, log: log, metrics: reg, store: store}
}

// Start transitions STOPPED -> STARTING -> RUNNING, spawning one Worker per
// enabled, supported source descriptor (§4.F Start).
func (s *Supervisor) Start() error {
	s.mu.Lock()
	s.state = StateStarting
	s.mu.Unlock()

	merged, err := s.getConfig()
	if err != nil {
		s.setFatal()
		return fmt.Errorf("supervisor start: %w", err)
	}
	if merged.Sources == nil {
		s.setFatal()
		return fmt.Errorf("supervisor start: config has no sources array")
	}

	var spawned []*worker.Worker
	for _, desc := range merged.Sources {
		if !desc.Enabled {
			continue
		}
		switch desc.Kind {
		case config.KindLocal, config.KindSMB, config.KindFTP:
		default:
			s.log.Warningf("supervisor: skipping source %s: unsupported kind %s", desc.Name, desc.Kind)
			continue
		}
		w, err := worker.New(desc, s.log, s.metrics, s.store)
		if err != nil {
			s.stopAll(spawned)
			s.setFatal()
			return fmt.Errorf("supervisor start: building worker for %s: %w", desc.Name, err)
		}
		if err := w.Start(); err != nil {
			s.stopAll(spawned)
			s.setFatal()
			return fmt.Errorf("supervisor start: starting worker for %s: %w", desc.Name, err)
		}
		spawned = append(spawned, w)
	}

	s.mu.Lock()
	s.workers = spawned
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) setFatal() {
	s.mu.Lock()
	s.state = StateFatal
	s.mu.Unlock()
}

func (s *Supervisor) stopAll(workers []*worker.Worker) {
	for _, w := range workers {
		_ = w.StopGracefully()
	}
}

// Reload rebuilds the worker set from a fresh config read; on validation
// failure the old set is untouched (§4.F Reload).
func (s *Supervisor) Reload() error {
	s.mu.Lock()
	s.state = StateReloading
	s.mu.Unlock()

	merged, err := s.getConfig()
	if err != nil {
		s.mu.Lock()
		s.state = StateRunning
		s.mu.Unlock()
		return fmt.Errorf("supervisor reload: %w", err)
	}
	if len(merged.Sources) == 0 {
		s.log.Errorf("supervisor reload: config has no sources array, keeping previous worker set running")
		s.mu.Lock()
		s.state = StateRunning
		s.mu.Unlock()
		return fmt.Errorf("supervisor reload: config has no sources array")
	}

	var replacement []*worker.Worker
	for _, desc := range merged.Sources {
		if !desc.Enabled {
			continue
		}
		switch desc.Kind {
		case config.KindLocal, config.KindSMB, config.KindFTP:
		default:
			continue
		}
		w, err := worker.New(desc, s.log, s.metrics, s.store)
		if err != nil {
			s.stopAll(replacement)
			s.mu.Lock()
			s.state = StateRunning
			s.mu.Unlock()
			return fmt.Errorf("supervisor reload: building worker for %s: %w", desc.Name, err)
		}
		if err := w.Start(); err != nil {
			s.stopAll(replacement)
			s.mu.Lock()
			s.state = StateRunning
			s.mu.Unlock()
			return fmt.Errorf("supervisor reload: starting worker for %s: %w", desc.Name, err)
		}
		replacement = append(replacement, w)
	}

	s.mu.Lock()
	previous := s.workers
	s.workers = replacement
	s.state = StateRunning
	s.mu.Unlock()

	s.stopAll(previous)
	return nil
}

// HealthCheck restarts any worker whose IsAlive is false, incrementing the
// workers_restarted counter for each restart (§4.F healthCheck).
func (s *Supervisor) HealthCheck() {
	s.mu.Lock()
	workers := append([]*worker.Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range workers {
		if w.IsAlive() {
			continue
		}
		if w.IsFatal() {
			s.log.Errorf("supervisor: %s halted by a fatal adapter error, not restarting", w.Identity())
			continue
		}
		if err := w.Restart(); err != nil {
			s.log.Errorf("supervisor: restart of %s failed: %v", w.Identity(), err)
			continue
		}
		s.mu.Lock()
		s.workersRestarted++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.Increment("workers_restarted", 1)
		}
	}
}

// Stop calls StopGracefully on each worker, in unspecified order (§4.F Stop).
func (s *Supervisor) Stop() {
	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.state = StateStopped
	s.mu.Unlock()
	s.stopAll(workers)
}

func (s *Supervisor) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) GetWorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}
