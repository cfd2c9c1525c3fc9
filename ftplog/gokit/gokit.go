// Package gokit provides a ftplog.Logger implementation backed by go-kit/log.
package gokit

import (
	"fmt"
	"os"

	gklog "github.com/go-kit/kit/log"
	gklevel "github.com/go-kit/kit/log/level"

	"github.com/coreftpd/ftpserver/ftplog"
)

type gkLogger struct {
	logger gklog.Logger
}

func (l *gkLogger) checkError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging error:", err)
	}
}

func (l *gkLogger) log(leveled gklog.Logger, event string, keyvals ...interface{}) {
	keyvals = append(append([]interface{}{}, keyvals...), "event", event)
	l.checkError(leveled.Log(keyvals...))
}

// Debug logs at debug level.
func (l *gkLogger) Debug(event string, keyvals ...interface{}) {
	l.log(gklevel.Debug(l.logger), event, keyvals...)
}

// Info logs at info level.
func (l *gkLogger) Info(event string, keyvals ...interface{}) {
	l.log(gklevel.Info(l.logger), event, keyvals...)
}

// Warn logs at warn level.
func (l *gkLogger) Warn(event string, keyvals ...interface{}) {
	l.log(gklevel.Warn(l.logger), event, keyvals...)
}

// Error logs at error level.
func (l *gkLogger) Error(event string, keyvals ...interface{}) {
	l.log(gklevel.Error(l.logger), event, keyvals...)
}

// With returns a logger with the given key/values always attached.
func (l *gkLogger) With(keyvals ...interface{}) ftplog.Logger {
	return NewLogger(gklog.With(l.logger, keyvals...))
}

// NewLogger wraps a go-kit logger as a ftplog.Logger.
func NewLogger(logger gklog.Logger) ftplog.Logger {
	return &gkLogger{logger: logger}
}

// NewStdoutLogger creates a logfmt logger writing to stdout, with caller and
// UTC timestamp fields, matching the defaults the teacher library shipped.
func NewStdoutLogger() ftplog.Logger {
	base := gklog.NewLogfmtLogger(gklog.NewSyncWriter(os.Stdout))
	base = gklog.With(base, "ts", gklog.DefaultTimestampUTC, "caller", gklog.Caller(5))

	return NewLogger(base)
}
