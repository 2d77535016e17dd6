//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/slogger.go
//

package gateway

import "log/slog"

// SLogger abstracts the [*slog.Logger] behavior.
//
// By using an abstraction we allow for unit testing and alternative implementations.
//
// This package uses two log levels:
//   - Info for lifecycle and protocol events (listen, accept, request
//     read, application invocation, response write, close) and for the
//     httpRequest/httpResponse wire observations
//   - Debug for per-I/O events (read, write, set deadline)
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns the default [SLogger] to use.
//
// The default is a no-op logger that discards all output.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

// discardSLogger is a no-op [SLogger] that discards all log messages.
type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(msg string, args ...any) {
	// nothing
}

// Info implements [SLogger].
func (discardSLogger) Info(msg string, args ...any) {
	// nothing
}

// spanLogger decorates an [SLogger] so that every event carries the spanID
// of the connection being served.
type spanLogger struct {
	logger SLogger
	spanID string
}

var _ SLogger = &spanLogger{}

// newSpanLogger returns a logger tagging all events with spanID.
func newSpanLogger(logger SLogger, spanID string) *spanLogger {
	return &spanLogger{logger: logger, spanID: spanID}
}

// Debug implements [SLogger].
func (l *spanLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, append(args, slog.String("spanID", l.spanID))...)
}

// Info implements [SLogger].
func (l *spanLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, append(args, slog.String("spanID", l.spanID))...)
}
