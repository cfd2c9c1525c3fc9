// Package noop provides a Logger implementation that discards everything.
package noop

import "github.com/coreftpd/ftpserver/ftplog"

type noOpLogger struct{}

func (l noOpLogger) Debug(string, ...interface{})      {}
func (l noOpLogger) Info(string, ...interface{})       {}
func (l noOpLogger) Warn(string, ...interface{})       {}
func (l noOpLogger) Error(string, ...interface{})      {}
func (l noOpLogger) With(...interface{}) ftplog.Logger { return l }

// NewNoOpLogger returns a Logger that does nothing.
func NewNoOpLogger() ftplog.Logger {
	return noOpLogger{}
}
