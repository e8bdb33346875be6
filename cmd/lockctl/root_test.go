package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jathurchan/locksmith/client"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/server"
	"github.com/jathurchan/locksmith/testutil"
	redis "github.com/redis/go-redis/v9"
)

var lockIDPattern = regexp.MustCompile(`Lock ID: (\S+)`)

func newTestService(t *testing.T) (*server.Server, string) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.HTTPAddress = ""
	cfg.GRPCAddress = ""
	srv, err := server.New(cfg)
	testutil.RequireNoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// executeCommand runs a fresh lockctl with args and returns captured stdout and stderr.
func executeCommand(ctx context.Context, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	testutil.AssertEqual(t, "lockctl", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"lock", "free", "exists"} {
		testutil.AssertTrue(t, names[want], "missing subcommand %q", want)
	}
}

func TestLockExistsFree(t *testing.T) {
	srv, url := newTestService(t)
	ctx := context.Background()

	out, _, err := executeCommand(ctx, "--endpoint", url, "lock", "--hold=false", "batch/export")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "Status: Acquired")
	m := lockIDPattern.FindStringSubmatch(out)
	testutil.RequireNotNil(t, m, "lock id missing from output: %q", out)
	lockID := m[1]

	out, _, err = executeCommand(ctx, "--endpoint", url, "exists", "batch/export")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "batch/export: Locked")

	out, _, err = executeCommand(ctx, "--endpoint", url, "free", lockID)
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "Status: Freed")
	testutil.AssertFalse(t, srv.Store().Exists("batch/export"))

	out, _, err = executeCommand(ctx, "--endpoint", url, "exists", "batch/export")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "batch/export: Unlocked")
}

func TestLockHoldsUntilInterrupted(t *testing.T) {
	srv, url := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := executeCommand(ctx, "--endpoint", url, "lock", "--ttl", "5s", "held/resource")
		done <- result{out, err}
	}()

	testutil.Eventually(t, func() bool { return srv.Store().Exists("held/resource") }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case r := <-done:
		testutil.RequireNoError(t, r.err)
		testutil.AssertContains(t, r.out, "Status: Acquired")
		testutil.AssertContains(t, r.out, "Status: Freed")
	case <-time.After(3 * time.Second):
		t.Fatal("lock command did not exit after interrupt")
	}
	testutil.AssertFalse(t, srv.Store().Exists("held/resource"))
}

func TestLockTimesOutWhenHeld(t *testing.T) {
	srv, url := newTestService(t)
	_, err := srv.Store().Create("busy", time.Minute)
	testutil.RequireNoError(t, err)

	out, _, err := executeCommand(context.Background(), "--endpoint", url, "lock", "--timeout", "200ms", "busy")
	testutil.AssertErrorIs(t, err, client.ErrAcquireTimeout)
	testutil.AssertContains(t, out, "Status: Timeout")
}

func TestFreeUnknownLock(t *testing.T) {
	_, url := newTestService(t)

	out, _, err := executeCommand(context.Background(), "--endpoint", url, "free", "no-such-lock")
	testutil.AssertError(t, err)
	testutil.AssertContains(t, out, "Status: Failed")
}

func TestEnvironmentAndConfigFile(t *testing.T) {
	_, url := newTestService(t)

	t.Setenv("LOCKCTL_ENDPOINT", url)
	out, _, err := executeCommand(context.Background(), "exists", "env/resource")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "env/resource: Unlocked")

	t.Setenv("LOCKCTL_ENDPOINT", "")
	dir := t.TempDir()
	file := filepath.Join(dir, "lockctl.yaml")
	testutil.RequireNoError(t, os.WriteFile(file, []byte("endpoint: "+url+"\nrequest-timeout: 2s\n"), 0o600))

	out, _, err = executeCommand(context.Background(), "--config", file, "exists", "file/resource")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "file/resource: Unlocked")

	_, _, err = executeCommand(context.Background(), "--config", filepath.Join(dir, "missing.yaml"), "exists", "x")
	testutil.AssertError(t, err, "an explicit config file must exist")
}

func TestUnknownTransport(t *testing.T) {
	_, _, err := executeCommand(context.Background(), "--transport", "carrier-pigeon", "exists", "x")
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "unknown transport")
}

func TestTraceFlagPrintsSpans(t *testing.T) {
	_, url := newTestService(t)

	_, errOut, err := executeCommand(context.Background(), "--endpoint", url, "--trace", "exists", "traced")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, errOut, "LockService.Exists")
}

func TestRedisRegistryResolution(t *testing.T) {
	srv, url := newTestService(t)
	mr := miniredis.RunT(t)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	testutil.RequireNoError(t, resolver.NewRedis(rc).Register(context.Background(), "locks", url, time.Minute))

	out, _, err := executeCommand(context.Background(),
		"--registry-redis", mr.Addr(), "--service", "locks", "lock", "--hold=false", "via/registry")
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, out, "Status: Acquired")
	testutil.AssertTrue(t, srv.Store().Exists("via/registry"))
}
