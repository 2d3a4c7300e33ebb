// Package klog is the kernel logger. Lines are written to a line sink such
// as the HAL logger.
package klog

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Level is a log level. Higher levels are more verbose.
type Level uint32

const (
	Warning Level = iota
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "W"
	case Info:
		return "I"
	case Debug:
		return "D"
	default:
		return fmt.Sprintf("Level(%d)", uint32(l))
	}
}

// ParseLevel maps a config name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "warning", "warn":
		return Warning, nil
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	}
	return Info, fmt.Errorf("klog: unknown level %q", s)
}

// Sink receives complete log lines without trailing newline.
type Sink interface {
	WriteLineString(s string)
}

// Logger is the logging interface used across the kernel.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warningf(format string, v ...any)
	IsLogging(Level) bool
}

// SinkLogger formats lines as "<level> <component>: <message>".
type SinkLogger struct {
	sink      Sink
	component string
	level     *atomic.Uint32
}

// New returns a logger writing to sink at the given verbosity.
func New(sink Sink, level Level) *SinkLogger {
	l := &SinkLogger{sink: sink, level: new(atomic.Uint32)}
	l.level.Store(uint32(level))
	return l
}

// Named returns a logger for a component. It shares the sink and the level.
func (l *SinkLogger) Named(component string) *SinkLogger {
	return &SinkLogger{sink: l.sink, component: component, level: l.level}
}

// SetLevel changes the verbosity of l and every logger derived from it.
func (l *SinkLogger) SetLevel(level Level) { l.level.Store(uint32(level)) }

// IsLogging implements Logger.
func (l *SinkLogger) IsLogging(level Level) bool {
	return l.sink != nil && uint32(level) <= l.level.Load()
}

func (l *SinkLogger) emit(level Level, format string, v []any) {
	if !l.IsLogging(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		msg = l.component + ": " + msg
	}
	l.sink.WriteLineString(level.String() + " " + msg)
}

// Debugf implements Logger.
func (l *SinkLogger) Debugf(format string, v ...any) { l.emit(Debug, format, v) }

// Infof implements Logger.
func (l *SinkLogger) Infof(format string, v ...any) { l.emit(Info, format, v) }

// Warningf implements Logger.
func (l *SinkLogger) Warningf(format string, v ...any) { l.emit(Warning, format, v) }

type rateLimited struct {
	logger Logger
	limit  *rate.Limiter
}

func (rl *rateLimited) Debugf(format string, v ...any) {
	if rl.logger.IsLogging(Debug) && rl.limit.Allow() {
		rl.logger.Debugf(format, v...)
	}
}

func (rl *rateLimited) Infof(format string, v ...any) {
	if rl.logger.IsLogging(Info) && rl.limit.Allow() {
		rl.logger.Infof(format, v...)
	}
}

func (rl *rateLimited) Warningf(format string, v ...any) {
	if rl.limit.Allow() {
		rl.logger.Warningf(format, v...)
	}
}

func (rl *rateLimited) IsLogging(level Level) bool { return rl.logger.IsLogging(level) }

// RateLimited returns a Logger that logs to logger no more than once per
// every. Interrupt-context code logs through one of these.
func RateLimited(logger Logger, every time.Duration) Logger {
	return &rateLimited{logger: logger, limit: rate.NewLimiter(rate.Every(every), 1)}
}

// Discard drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...any)   {}
func (discard) Infof(string, ...any)    {}
func (discard) Warningf(string, ...any) {}
func (discard) IsLogging(Level) bool    { return false }
