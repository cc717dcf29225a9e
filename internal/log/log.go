// Package log defines the logging interface used across the service.
package log

// Logger is the shared logging interface. Implementations must be safe for
// concurrent use.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatalf(format string, args ...any)

	// WithFields returns a child logger carrying additional key/value pairs.
	// Fields are provided as alternating keys and values.
	WithFields(fields ...any) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}
