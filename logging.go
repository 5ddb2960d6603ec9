package aiocore

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
)

// LogLevel orders the severities a Logger accepts, matching the ordering
// used throughout the retrieval pack's own small logging facades.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the printf-style logging interface the port reports its own
// failures to (poller wait/add errors, teardown errors in Term). It is
// intentionally minimal so that a caller can
// adapt any concrete logging library (zerolog, zap, logiface, ...) to it
// without this package importing one. Carried as ambient plumbing even
// though spec.md's Non-goals exclude "logging" as a public feature.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// noopLogger discards everything; it is the default when no Logger is
// configured.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// NewNoOpLogger returns a Logger that discards all output.
func NewNoOpLogger() Logger { return noopLogger{} }

// stdLogger is a minimal level-filtered adapter over the standard library's
// log.Logger, usable without pulling in a third-party logging backend.
type stdLogger struct {
	level atomic.Int32
	out   *log.Logger
}

// NewStdLogger returns a Logger writing to out, filtering anything below
// level.
func NewStdLogger(out io.Writer, level LogLevel) Logger {
	l := &stdLogger{out: log.New(out, "", log.LstdFlags|log.Lmicroseconds)}
	l.level.Store(int32(level))
	return l
}

func (l *stdLogger) enabled(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

func (l *stdLogger) log(level LogLevel, prefix, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Debugf(format string, args ...any) { l.log(LevelDebug, "[DEBUG]", format, args...) }
func (l *stdLogger) Infof(format string, args ...any)  { l.log(LevelInfo, "[INFO]", format, args...) }
func (l *stdLogger) Warnf(format string, args ...any)  { l.log(LevelWarn, "[WARN]", format, args...) }
func (l *stdLogger) Errorf(format string, args ...any) { l.log(LevelError, "[ERROR]", format, args...) }
