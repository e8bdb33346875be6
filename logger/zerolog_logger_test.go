package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jathurchan/locksmith/testutil"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		testutil.RequireNoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "locksmith", "debug")

	l.WithResource("orders").WithComponent("handle").With("ttl", "30s").
		Errorw("renew failed", "lock_id", "abc", "error", errors.New("gone"))

	lines := decodeLines(t, &buf)
	testutil.AssertLen(t, lines, 1)
	entry := lines[0]
	testutil.AssertEqual(t, "error", entry["level"])
	testutil.AssertEqual(t, "renew failed", entry["message"])
	testutil.AssertEqual(t, "locksmith", entry["service"])
	testutil.AssertEqual(t, "orders", entry["resource"])
	testutil.AssertEqual(t, "handle", entry["component"])
	testutil.AssertEqual(t, "30s", entry["ttl"])
	testutil.AssertEqual(t, "abc", entry["lock_id"])
	testutil.AssertEqual(t, "gone", entry["error"])
}

func TestZerologLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "locksmith", "warn")

	l.Debugw("hidden")
	l.Infow("hidden")
	l.Warnw("shown")

	lines := decodeLines(t, &buf)
	testutil.AssertLen(t, lines, 1)
	testutil.AssertEqual(t, "shown", lines[0]["message"])
}

func TestZerologLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "locksmith", "nonsense")

	l.Debugw("hidden")
	l.Infow("shown")

	lines := decodeLines(t, &buf)
	testutil.AssertLen(t, lines, 1)
}
