package gpuparticle

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Level tags a log line. Warnings and errors go to the error stream.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", uint8(lv))
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

// NewDefaultLogger logs to stdout and stderr with timestamps.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(prefix, debug, os.Stdout, os.Stderr, log.LstdFlags|log.Lmicroseconds)
}

// NewWriterLogger logs debug and info lines to out and the rest to errOut.
func NewWriterLogger(prefix string, debug bool, out, errOut io.Writer, flags int) *DefaultLogger {
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) logf(lv Level, format string, args ...any) {
	if lv == LevelDebug && !l.DebugEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] %s: %s", l.prefix, lv, msg)
	} else {
		msg = fmt.Sprintf("%s: %s", lv, msg)
	}
	if lv >= LevelWarn {
		l.err.Print(msg)
		return
	}
	l.out.Print(msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// scopedLogger prepends a scope such as "emitter 1a2b3c4d" to every line of
// the logger it wraps.
type scopedLogger struct {
	Logger
	scope string
}

// WithPrefix returns a Logger that writes "scope: message" through l.
func WithPrefix(l Logger, scope string) Logger {
	if l == nil {
		l = NewNopLogger()
	}
	return &scopedLogger{Logger: l, scope: scope}
}

func (s *scopedLogger) Debugf(format string, args ...any) {
	if !s.DebugEnabled() {
		return
	}
	s.Logger.Debugf("%s: %s", s.scope, fmt.Sprintf(format, args...))
}

func (s *scopedLogger) Infof(format string, args ...any) {
	s.Logger.Infof("%s: %s", s.scope, fmt.Sprintf(format, args...))
}

func (s *scopedLogger) Warnf(format string, args ...any) {
	s.Logger.Warnf("%s: %s", s.scope, fmt.Sprintf(format, args...))
}

func (s *scopedLogger) Errorf(format string, args ...any) {
	s.Logger.Errorf("%s: %s", s.scope, fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
