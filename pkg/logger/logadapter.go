package serverlogger

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap/zapcore"

	"github.com/livekit/protocol/logger"
)

// subset of logger.Logger the adapter writes to
type leveledSink interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, err error, keysAndValues ...interface{})
	Errorw(msg string, err error, keysAndValues ...interface{})
}

// implements logging.LoggerFactory
type loggerFactory struct {
	sink  leveledSink
	level zapcore.Level
}

// NewLoggerFactory routes pion logs into l, dropping anything below level.
// An unparsable level falls back to error.
func NewLoggerFactory(l logger.Logger, level string) logging.LoggerFactory {
	return newLoggerFactory(l, level)
}

func newLoggerFactory(sink leveledSink, level string) *loggerFactory {
	return &loggerFactory{
		sink:  sink,
		level: parseLevel(level),
	}
}

func parseLevel(level string) zapcore.Level {
	lvl := zapcore.ErrorLevel
	if level == "" {
		return lvl
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.ErrorLevel
	}
	return lvl
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logAdapter{
		sink:  f.sink,
		level: f.level,
		scope: scope,
	}
}

// implements logging.LeveledLogger
type logAdapter struct {
	sink  leveledSink
	level zapcore.Level
	scope string
}

func (l *logAdapter) Trace(msg string) {
	// ignore trace
}

func (l *logAdapter) Tracef(format string, args ...interface{}) {
	// ignore trace
}

func (l *logAdapter) Debug(msg string) {
	if l.level > zapcore.DebugLevel {
		return
	}
	l.sink.Debugw(msg, "scope", l.scope)
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	if l.level > zapcore.DebugLevel {
		return
	}
	l.sink.Debugw(fmt.Sprintf(format, args...), "scope", l.scope)
}

func (l *logAdapter) Info(msg string) {
	if l.level > zapcore.InfoLevel {
		return
	}
	l.sink.Infow(msg, "scope", l.scope)
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	if l.level > zapcore.InfoLevel {
		return
	}
	l.sink.Infow(fmt.Sprintf(format, args...), "scope", l.scope)
}

func (l *logAdapter) Warn(msg string) {
	if l.level > zapcore.WarnLevel {
		return
	}
	l.sink.Warnw(msg, nil, "scope", l.scope)
}

func (l *logAdapter) Warnf(format string, args ...interface{}) {
	if l.level > zapcore.WarnLevel {
		return
	}
	l.sink.Warnw(fmt.Sprintf(format, args...), nil, "scope", l.scope)
}

func (l *logAdapter) Error(msg string) {
	if l.level > zapcore.ErrorLevel {
		return
	}
	l.sink.Errorw(msg, nil, "scope", l.scope)
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	if l.level > zapcore.ErrorLevel {
		return
	}
	l.sink.Errorw(fmt.Sprintf(format, args...), nil, "scope", l.scope)
}
