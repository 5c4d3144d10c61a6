// Package logging provides the structured Logger interface shared by every
// long-lived component of the core (hub, bridges, dispatcher, playback,
// mic), backed by logrus.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface every component depends on. It is
// deliberately smaller than logrus.FieldLogger so components never couple to
// a specific backend.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Useful as a zero-value-safe default and in
// tests that don't care about log output.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// logrusLogger adapts a *logrus.Logger (or entry) to Logger. args are
// treated as alternating key/value pairs, same convention as slog.
type logrusLogger struct {
	entry *logrus.Entry
}

// New wraps a logrus.Logger configured at the given level.
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// ParseLevel maps the CLI's {trace,debug,info,warn,error} vocabulary (§6.3)
// onto a logrus.Level, defaulting to Info on an unrecognized value.
func ParseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// WithFields returns a Logger that annotates every subsequent call with the
// given fields — used by bridges to tag every log line with their node name.
func WithFields(base Logger, fields map[string]interface{}) Logger {
	ll, ok := base.(*logrusLogger)
	if !ok {
		return base
	}
	return &logrusLogger{entry: ll.entry.WithFields(fields)}
}

func (l *logrusLogger) Debug(msg string, args ...interface{}) { l.log(logrus.DebugLevel, msg, args) }
func (l *logrusLogger) Info(msg string, args ...interface{})  { l.log(logrus.InfoLevel, msg, args) }
func (l *logrusLogger) Warn(msg string, args ...interface{})  { l.log(logrus.WarnLevel, msg, args) }
func (l *logrusLogger) Error(msg string, args ...interface{}) { l.log(logrus.ErrorLevel, msg, args) }

func (l *logrusLogger) log(level logrus.Level, msg string, args []interface{}) {
	entry := l.entry
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		entry = entry.WithField(key, args[i+1])
	}
	entry.Log(level, msg)
}
