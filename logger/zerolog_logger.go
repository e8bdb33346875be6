package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &ZerologLogger{zl: zl}
}

// NewJSONLogger returns a zerolog-backed Logger emitting JSON lines to w,
// stamped with a timestamp and the given service name.
func NewJSONLogger(w io.Writer, serviceName, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, kvs []any) {
	forEachPair(kvs, func(key string, val any) {
		if err, ok := val.(error); ok {
			ev = ev.AnErr(key, err)
			return
		}
		ev = ev.Interface(key, val)
	})
	ev.Msg(msg)
}

func (l *ZerologLogger) Debugw(msg string, kvs ...any) { l.emit(l.zl.Debug(), msg, kvs) }
func (l *ZerologLogger) Infow(msg string, kvs ...any)  { l.emit(l.zl.Info(), msg, kvs) }
func (l *ZerologLogger) Warnw(msg string, kvs ...any)  { l.emit(l.zl.Warn(), msg, kvs) }
func (l *ZerologLogger) Errorw(msg string, kvs ...any) { l.emit(l.zl.Error(), msg, kvs) }
func (l *ZerologLogger) Fatalw(msg string, kvs ...any) { l.emit(l.zl.Fatal(), msg, kvs) }

// With adds key-value pairs to the logger's context.
func (l *ZerologLogger) With(kvs ...any) Logger {
	zctx := l.zl.With()
	forEachPair(kvs, func(key string, val any) {
		zctx = zctx.Interface(key, val)
	})
	return &ZerologLogger{zl: zctx.Logger()}
}

// WithComponent returns a logger with a component name added to the context.
func (l *ZerologLogger) WithComponent(name string) Logger {
	return &ZerologLogger{zl: l.zl.With().Str("component", name).Logger()}
}

// WithResource returns a logger with the locked resource identifier added to the context.
func (l *ZerologLogger) WithResource(resourceID string) Logger {
	return &ZerologLogger{zl: l.zl.With().Str("resource", resourceID).Logger()}
}
