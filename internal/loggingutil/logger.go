// Package loggingutil is a thin, per-call-site wrapper around logrus,
// mirroring the shape of golang-dep's log.Logger (a small struct handed
// to constructors rather than a package-global) while giving every
// component structured fields instead of a bare io.Writer.
package loggingutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Entry. Callers get one per PkgDbInput/Registry/
// Environment instance (via With/WithFields) rather than reaching for
// a process-wide global, per spec §9's "avoid process-wide globals so
// parallel test runs can sandbox per test" design note generalized from
// cache directories to logging.
type Logger struct {
	entry *logrus.Entry
}

// New builds a root Logger writing to w (os.Stderr in production, a
// test buffer in tests).
func New(w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(base)}
}

// Default returns a Logger writing to os.Stderr.
func Default() *Logger {
	return New(os.Stderr)
}

// SetDebug toggles debug-level logging on l's underlying logger.
func (l *Logger) SetDebug(debug bool) {
	if debug {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

// With returns a derived Logger carrying an additional structured field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a derived Logger carrying additional structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
