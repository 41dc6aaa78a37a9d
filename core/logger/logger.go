// Package logger defines the logging contract used by core packages.
// Implementations live in infra/logger.
package logger

// Logger is a leveled logger bound to one component.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs msg with structured fields attached.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
