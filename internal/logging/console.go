package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// ConsoleSink writes formatted log lines to an io.Writer (stdout by default),
// grounded on the original liblogger_v2 ConsoleLogger.
type ConsoleSink struct {
	mu        sync.Mutex
	level     Level
	out       io.Writer
	formatter logrus.Formatter
}

// NewConsoleSink attaches a console sink to the facade at the given level.
func NewConsoleSink(f *Facade, level Level) *ConsoleSink {
	s := &ConsoleSink{
		level: level,
		out:   os.Stdout,
		formatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		},
	}
	f.Attach(s, &levelHook{min: level.logrusLevel(), write: s.write})
	return s
}

func (s *ConsoleSink) Name() string { return "console" }
func (s *ConsoleSink) Level() Level { return s.level }

func (s *ConsoleSink) write(e *logrus.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := s.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = s.out.Write(line)
	return err
}

func (s *ConsoleSink) Close() error { return nil }
