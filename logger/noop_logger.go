package logger

// NoOpLogger discards every message. Tests that want to observe what a
// component logs without configuring output can set Hook.
type NoOpLogger struct {
	// Hook, when set, receives every message with its level.
	Hook func(level LogLevel, msg string, keysAndValues ...any)
}

func (l *NoOpLogger) emit(level LogLevel, msg string, kvs []any) {
	if l.Hook != nil {
		l.Hook(level, msg, kvs...)
	}
}

func (l *NoOpLogger) Debugw(msg string, keysAndValues ...any) { l.emit(LevelDebug, msg, keysAndValues) }
func (l *NoOpLogger) Infow(msg string, keysAndValues ...any)  { l.emit(LevelInfo, msg, keysAndValues) }
func (l *NoOpLogger) Warnw(msg string, keysAndValues ...any)  { l.emit(LevelWarn, msg, keysAndValues) }
func (l *NoOpLogger) Errorw(msg string, keysAndValues ...any) { l.emit(LevelError, msg, keysAndValues) }

// Fatalw never exits the process.
func (l *NoOpLogger) Fatalw(msg string, keysAndValues ...any) { l.emit(LevelFatal, msg, keysAndValues) }

// With, WithComponent and WithResource return l; context is not kept.
func (l *NoOpLogger) With(keysAndValues ...any) Logger       { return l }
func (l *NoOpLogger) WithComponent(name string) Logger       { return l }
func (l *NoOpLogger) WithResource(resourceID string) Logger { return l }

// NewNoOpLogger returns a Logger that discards all messages.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}
