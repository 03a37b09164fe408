// Package metrics implements the Metrics Registry of spec §4.I: named
// counters and task-time summaries, exported as Prometheus text format,
// grounded on the original MetricsCollector and built on
// github.com/prometheus/client_golang the way ipiton-alert-history-service
// wires its own metrics.
package metrics

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrDuplicateName is returned by RegisterCounter for an already-registered name.
var ErrDuplicateName = fmt.Errorf("metric already registered")

// ErrBadName is returned when name does not match [A-Za-z_][A-Za-z0-9_]*.
var ErrBadName = fmt.Errorf("metric name does not match [A-Za-z_][A-Za-z0-9_]*")

// Registry is a single process-wide metrics registry (§9: explicitly-owned
// value constructed at service entry, not an unchecked global).
type Registry struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]prometheus.Counter
	sums     map[string]*taskTime
	reg      *prometheus.Registry
}

type taskTime struct {
	sum   prometheus.Counter
	count prometheus.Counter
}

// New creates an empty Registry. prefix is prepended to every exported
// metric name ("<prefix>_<name>" per §4.I).
func New(prefix string) *Registry {
	return &Registry{
		prefix:   prefix,
		counters: make(map[string]prometheus.Counter),
		sums:     make(map[string]*taskTime),
		reg:      prometheus.NewRegistry(),
	}
}

// RegisterCounter registers a new monotonic counter. Fails on duplicate name
// or a name that doesn't match the required pattern.
func (r *Registry) RegisterCounter(name, help string) error {
	if !nameRE.MatchString(name) {
		return ErrBadName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.counters[name]; exists {
		return ErrDuplicateName
	}
	if _, exists := r.sums[name]; exists {
		return ErrDuplicateName
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: r.prefix + "_" + name,
		Help: help,
	})
	if err := r.reg.Register(c); err != nil {
		return err
	}
	r.counters[name] = c
	return nil
}

// Increment adds delta to a registered counter. Silent
// no-op for an unregistered name — the producer is decoupled from the
// registry per §4.I.
func (r *Registry) Increment(name string, delta float64) {
	r.mu.Lock()
	c, ok := r.counters[name]
	r.mu.Unlock()
	if !ok {
		return
	}
	c.Add(delta)
}

// RecordTaskTime registers (on first use) and updates a task-time summary
// as a (sum, count) pair in milliseconds.
func (r *Registry) RecordTaskTime(name string, durationMs float64) {
	r.mu.Lock()
	t, ok := r.sums[name]
	if !ok {
		sum := prometheus.NewCounter(prometheus.CounterOpts{Name: r.prefix + "_" + name + "_sum_ms", Help: "sum of task durations in ms"})
		cnt := prometheus.NewCounter(prometheus.CounterOpts{Name: r.prefix + "_" + name + "_count", Help: "count of task observations"})
		_ = r.reg.Register(sum)
		_ = r.reg.Register(cnt)
		t = &taskTime{sum: sum, count: cnt}
		r.sums[name] = t
	}
	r.mu.Unlock()
	t.sum.Add(durationMs)
	t.count.Inc()
}

// ExportText renders every registered metric in Prometheus text exposition
// format 0.0.4 (§6: consumed by an external transport, not served here).
func (r *Registry) ExportText() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	families, err := r.reg.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
