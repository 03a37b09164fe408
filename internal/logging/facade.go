// Package logging implements the Log Facade of spec §4.J: a levelled logger
// with an open set of named sinks, grounded on the original liblogger_v2's
// ILogger/CompositeLogger split and built on logrus the way rclone wires its
// own logging — one shared logger, multiple independently-filtering hooks.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Sink is one named logging destination: console, sync_file or async_file.
// Each sink owns its own level filter and formatting; the facade never
// filters on their behalf.
type Sink interface {
	Name() string
	Level() Level
	// Close flushes and releases any resources (files, drain goroutines).
	Close() error
}

// Facade is the composite logger used by every other component (A-I).
// It forwards each call to every attached sink via logrus hooks.
type Facade struct {
	base  *logrus.Logger
	sinks []Sink
}

// New creates a Facade with no sinks attached. Attach sinks with Attach.
func New() *Facade {
	base := logrus.New()
	base.SetOutput(io.Discard) // all output goes through hooks/sinks
	base.SetLevel(logrus.TraceLevel)
	return &Facade{base: base}
}

// Attach registers a sink (and its logrus.Hook) with the facade. The base
// logger stays at trace level, so each hook applies its own sink's level.
func (f *Facade) Attach(s Sink, hook logrus.Hook) {
	f.sinks = append(f.sinks, s)
	f.base.AddHook(hook)
}

// Close closes every attached sink, draining async queues first.
func (f *Facade) Close() error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Facade) Debugf(format string, args ...interface{})    { f.base.Debugf(format, args...) }
func (f *Facade) Infof(format string, args ...interface{})     { f.base.Infof(format, args...) }
func (f *Facade) Warningf(format string, args ...interface{})  { f.base.Warnf(format, args...) }
func (f *Facade) Errorf(format string, args ...interface{})    { f.base.Errorf(format, args...) }
func (f *Facade) Criticalf(format string, args ...interface{}) { f.base.Logf(logrus.FatalLevel, format, args...) }

// WithFields returns an entry carrying structured context, forwarded the
// same way as the unadorned calls above.
func (f *Facade) WithFields(fields map[string]interface{}) *logrus.Entry {
	return f.base.WithFields(logrus.Fields(fields))
}

// levelHook filters entries for levels >= min before calling write.
type levelHook struct {
	min   logrus.Level
	write func(*logrus.Entry) error
}

func (h *levelHook) Levels() []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= h.min {
			levels = append(levels, l)
		}
	}
	return levels
}

func (h *levelHook) Fire(e *logrus.Entry) error { return h.write(e) }
