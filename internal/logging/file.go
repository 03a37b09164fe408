package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RotationMode selects how a FileSink rotates its output, per §4.J.
type RotationMode int

// Rotation modes.
const (
	RotationNone RotationMode = iota
	RotationSize
	RotationTime
)

// RotationConfig configures size- or time-triggered rotation.
type RotationConfig struct {
	Mode        RotationMode
	MaxBytes    int64         // used when Mode == RotationSize
	Interval    time.Duration // used when Mode == RotationTime
}

// FileSink is a synchronous file-backed sink. Opening the primary path is
// lazy (on first write); if it fails, the sink falls back to Fallback.
type FileSink struct {
	mu         sync.Mutex
	level      Level
	path       string
	fallback   string
	rotation   RotationConfig
	formatter  logrus.Formatter
	f          *os.File
	size       int64
	lastRotate time.Time
	usingFallback bool
}

// NewFileSink attaches a synchronous file sink to the facade.
func NewFileSink(facade *Facade, level Level, path, fallback string, rot RotationConfig) *FileSink {
	s := &FileSink{
		level:    level,
		path:     path,
		fallback: fallback,
		rotation: rot,
		formatter: &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		},
		lastRotate: time.Now(),
	}
	facade.Attach(s, &levelHook{min: level.logrusLevel(), write: s.write})
	return s
}

func (s *FileSink) Name() string { return "sync_file" }
func (s *FileSink) Level() Level { return s.level }

func (s *FileSink) write(e *logrus.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.maybeRotate(); err != nil {
		// rotation failures are logged to stderr and never interrupt logging (§4.J)
		fmt.Fprintf(os.Stderr, "filterserviced: log rotation failed for %s: %v\n", s.path, err)
	}
	line, err := s.formatter.Format(e)
	if err != nil {
		return err
	}
	n, err := s.f.Write(line)
	s.size += int64(n)
	return err
}

func (s *FileSink) ensureOpen() error {
	if s.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err == nil {
		if f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			s.f = f
			if fi, statErr := f.Stat(); statErr == nil {
				s.size = fi.Size()
			}
			return nil
		}
	}
	if s.fallback == "" {
		return fmt.Errorf("open log file %s: primary unavailable, no fallback configured", s.path)
	}
	if err := os.MkdirAll(filepath.Dir(s.fallback), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.fallback, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.usingFallback = true
	if fi, statErr := f.Stat(); statErr == nil {
		s.size = fi.Size()
	}
	return nil
}

func (s *FileSink) maybeRotate() error {
	switch s.rotation.Mode {
	case RotationSize:
		if s.rotation.MaxBytes <= 0 || s.size < s.rotation.MaxBytes {
			return nil
		}
		return s.rotate(s.path+".1", false)
	case RotationTime:
		if s.rotation.Interval <= 0 || time.Since(s.lastRotate) < s.rotation.Interval {
			return nil
		}
		return s.rotate(fmt.Sprintf("%s_%d", s.path, time.Now().Unix()), true)
	default:
		return nil
	}
}

// rotate closes the current file, renames it to <path>.rotating, opens a
// fresh file at the original path, then renames the rotating file to dest.
func (s *FileSink) rotate(dest string, timeMode bool) error {
	activePath := s.path
	if s.usingFallback {
		activePath = s.fallback
	}
	rotating := activePath + ".rotating"

	if err := s.f.Close(); err != nil {
		return err
	}
	s.f = nil

	if err := os.Rename(activePath, rotating); err != nil {
		return err
	}
	f, err := os.OpenFile(activePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.size = 0
	if timeMode {
		s.lastRotate = time.Now()
	}
	return os.Rename(rotating, dest)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
