package logger

import "sync/atomic"

// holder keeps the concrete type stored in defLogger constant.
type holder struct{ Logger }

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(InfoLevel, false)})
}

func current() Logger {
	return defLogger.Load().(holder).Logger //nolint:forcetypeassert
}

// Debug logs to the package-level default logger at DebugLevel.
func Debug(msg string, keysAndValues ...any) { current().Debug(msg, keysAndValues...) }

// Info logs to the package-level default logger at InfoLevel.
func Info(msg string, keysAndValues ...any) { current().Info(msg, keysAndValues...) }

// Warn logs to the package-level default logger at WarnLevel.
func Warn(msg string, keysAndValues ...any) { current().Warn(msg, keysAndValues...) }

// Error logs to the package-level default logger at ErrorLevel.
func Error(msg string, keysAndValues ...any) { current().Error(msg, keysAndValues...) }

// Fatal logs to the package-level default logger, then exits.
func Fatal(msg string, keysAndValues ...any) { current().Fatal(msg, keysAndValues...) }

// SetLevel sets the minimum level of the package-level default logger.
func SetLevel(level Level) {
	current().SetLevel(level)
}

// GetLogger returns the package-level default logger.
func GetLogger() Logger {
	return current()
}

// SetLogger replaces the package-level default logger. A nil logger is ignored.
//
// Connections capture the default logger when their configuration is created,
// so SetLogger should be called before NewConnectionConfig.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(holder{l})
	}
}

// With returns a child of the package-level default logger.
func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
