package logger

import "testing"

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	logger.Debugw("debug message", "key", "value")
	logger.Infow("info message", "key", "value")
	logger.Warnw("warn message", "key", "value")
	logger.Errorw("error message", "key", "value")

	// NoOpLogger.Fatalw should not terminate the process
	logger.Fatalw("fatal message", "key", "value")

	chained := logger.WithComponent("handle").WithResource("orders").With("key", "value")
	chained.Infow("chained message")
}

func TestNoOpLogger_Hook(t *testing.T) {
	var got []string
	l := &NoOpLogger{
		Hook: func(level LogLevel, msg string, kv ...any) {
			if level >= LevelError {
				got = append(got, msg)
			}
		},
	}

	l.Errorw("keep-alive failed", "lock_id", "abc")
	l.Infow("ignored")
	l.WithComponent("keepalive").Errorw("renew failed")

	if len(got) != 2 || got[0] != "keep-alive failed" || got[1] != "renew failed" {
		t.Errorf("expected two captured error messages, got %v", got)
	}
}
