package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the upper-case label printed in front of each message.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLogLevel maps a string to a LogLevel. Defaults to LevelInfo on unknown input.
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// StdLogger logs messages through a standard library *log.Logger.
// Persistent context keys are printed in sorted order so output is stable.
type StdLogger struct {
	out      *log.Logger
	context  map[string]any
	minLevel LogLevel
	exit     func(int)
}

// NewStdLogger returns a StdLogger writing to stderr with a minimum log level filter.
func NewStdLogger(minLevelStr string) Logger {
	return NewStdLoggerTo(os.Stderr, minLevelStr)
}

// NewStdLoggerTo returns a StdLogger writing to w with a minimum log level filter.
func NewStdLoggerTo(w io.Writer, minLevelStr string) Logger {
	return &StdLogger{
		out:      log.New(w, "", log.LstdFlags),
		context:  make(map[string]any),
		minLevel: ParseLogLevel(minLevelStr),
		exit:     os.Exit,
	}
}

// log outputs a structured log entry if the level meets the threshold.
func (l *StdLogger) log(level LogLevel, msg string, kvs ...any) {
	if level < l.minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)

	keys := make([]string, 0, len(l.context))
	for k := range l.context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, l.context[k])
	}

	forEachPair(kvs, func(key string, val any) {
		fmt.Fprintf(&b, " %s=%v", key, val)
	})

	l.out.Println(b.String())

	if level == LevelFatal {
		l.exit(1)
	}
}

// forEachPair walks alternating key/value arguments, skipping non-string keys
// and a trailing unpaired key.
func forEachPair(kvs []any, fn func(key string, val any)) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		fn(key, kvs[i+1])
	}
}

func (l *StdLogger) Debugw(msg string, kvs ...any) { l.log(LevelDebug, msg, kvs...) }
func (l *StdLogger) Infow(msg string, kvs ...any)  { l.log(LevelInfo, msg, kvs...) }
func (l *StdLogger) Warnw(msg string, kvs ...any)  { l.log(LevelWarn, msg, kvs...) }
func (l *StdLogger) Errorw(msg string, kvs ...any) { l.log(LevelError, msg, kvs...) }
func (l *StdLogger) Fatalw(msg string, kvs ...any) { l.log(LevelFatal, msg, kvs...) }

// cloneWithContext returns a copy of the logger with merged context.
func (l *StdLogger) cloneWithContext(extra map[string]any) *StdLogger {
	newCtx := make(map[string]any, len(l.context)+len(extra))
	for k, v := range l.context {
		newCtx[k] = v
	}
	for k, v := range extra {
		newCtx[k] = v
	}
	return &StdLogger{out: l.out, context: newCtx, minLevel: l.minLevel, exit: l.exit}
}

// With adds key-value pairs to the logger's context.
func (l *StdLogger) With(kvs ...any) Logger {
	ctx := make(map[string]any)
	forEachPair(kvs, func(key string, val any) { ctx[key] = val })
	return l.cloneWithContext(ctx)
}

// WithComponent returns a logger with a component name added to the context.
func (l *StdLogger) WithComponent(name string) Logger {
	return l.cloneWithContext(map[string]any{"component": name})
}

// WithResource returns a logger with the locked resource identifier added to the context.
func (l *StdLogger) WithResource(resourceID string) Logger {
	return l.cloneWithContext(map[string]any{"resource": resourceID})
}
