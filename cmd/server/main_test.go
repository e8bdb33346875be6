package main

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/server"
	"github.com/jathurchan/locksmith/testutil"
	redis "github.com/redis/go-redis/v9"
)

func TestParseAndValidateFlags_Version(t *testing.T) {
	testWithFlags(t, []string{"--version"}, func(t *testing.T) {
		cfg, err := parseAndValidateFlags()
		testutil.AssertNoError(t, err)
		testutil.AssertTrue(t, cfg.ShowVersion)
	})
}

func TestParseAndValidateFlags_Defaults(t *testing.T) {
	testWithFlags(t, nil, func(t *testing.T) {
		cfg, err := parseAndValidateFlags()
		testutil.RequireNoError(t, err)

		sc := cfg.ServerConfig
		testutil.AssertEqual(t, server.DefaultHTTPAddress, sc.HTTPAddress, "Default HTTP address")
		testutil.AssertEqual(t, server.DefaultGRPCAddress, sc.GRPCAddress, "Default gRPC address")
		testutil.AssertEqual(t, server.DefaultShutdownTimeout, sc.ShutdownTimeout)
		testutil.AssertEqual(t, int64(server.DefaultMaxRequestSize), sc.MaxRequestSize)
		testutil.AssertEqual(t, server.DefaultMaxLockTTL, sc.MaxLockTTL)
		testutil.AssertFalse(t, sc.EnableRateLimit)
		testutil.AssertEqual(t, "info", cfg.LogLevel)
		testutil.AssertEqual(t, "text", cfg.LogFormat)
		testutil.AssertEqual(t, "", cfg.RegistryAddr)
		testutil.AssertEqual(t, defaultServiceName, cfg.ServiceName)
	})
}

func TestParseAndValidateFlags_CustomValues(t *testing.T) {
	args := []string{
		"--http-addr", "127.0.0.1:9000",
		"--grpc-addr", "",
		"--max-ttl", "10m",
		"--rate-limit",
		"--rate-limit-requests", "50",
		"--rate-limit-burst", "5",
		"--log-level", "debug",
		"--log-format", "json",
		"--registry-redis", "localhost:6379",
		"--service-name", "locks-eu",
		"--advertise", "http://locks.internal:9000",
	}
	testWithFlags(t, args, func(t *testing.T) {
		cfg, err := parseAndValidateFlags()
		testutil.RequireNoError(t, err)

		sc := cfg.ServerConfig
		testutil.AssertEqual(t, "127.0.0.1:9000", sc.HTTPAddress)
		testutil.AssertEqual(t, "", sc.GRPCAddress)
		testutil.AssertEqual(t, 10*time.Minute, sc.MaxLockTTL)
		testutil.AssertTrue(t, sc.EnableRateLimit)
		testutil.AssertEqual(t, 50, sc.RateLimit)
		testutil.AssertEqual(t, 5, sc.RateLimitBurst)
		testutil.AssertEqual(t, "debug", cfg.LogLevel)
		testutil.AssertEqual(t, "json", cfg.LogFormat)
		testutil.AssertEqual(t, "localhost:6379", cfg.RegistryAddr)
		testutil.AssertEqual(t, "locks-eu", cfg.ServiceName)
		testutil.AssertEqual(t, "http://locks.internal:9000", cfg.AdvertiseURL)
	})
}

func TestParseAndValidateFlags_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{
			name:     "no listeners",
			args:     []string{"--http-addr", "", "--grpc-addr", ""},
			errorMsg: "at least one of",
		},
		{
			name:     "bad log format",
			args:     []string{"--log-format", "xml"},
			errorMsg: "log-format",
		},
		{
			name:     "registry without service name",
			args:     []string{"--registry-redis", "localhost:6379", "--service-name", ""},
			errorMsg: "service-name",
		},
		{
			name:     "max ttl below minimum",
			args:     []string{"--max-ttl", "10ms"},
			errorMsg: "MaxLockTTL",
		},
		{
			name:     "rate limit without budget",
			args:     []string{"--rate-limit", "--rate-limit-requests", "0"},
			errorMsg: "RateLimit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testWithFlags(t, tt.args, func(t *testing.T) {
				_, err := parseAndValidateFlags()
				testutil.AssertError(t, err, "Expected error for test case: %s", tt.name)
				if err != nil {
					testutil.AssertContains(t, err.Error(), tt.errorMsg)
				}
			})
		})
	}
}

func TestCreateLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		for _, level := range []string{"debug", "info", "warn", "error", "invalid"} {
			log := createLogger(level, format)
			testutil.AssertNotNil(t, log, "Logger should not be nil")
		}
	}
}

func TestRun_VersionFlag(t *testing.T) {
	testWithFlags(t, []string{"--version"}, func(t *testing.T) {
		testutil.AssertNoError(t, run(), "run() should succeed with --version flag")
	})
}

func TestRun_InvalidFlags(t *testing.T) {
	testWithFlags(t, []string{"--http-addr", "", "--grpc-addr", ""}, func(t *testing.T) {
		err := run()
		testutil.AssertError(t, err)
		testutil.AssertContains(t, err.Error(), "configuration error")
	})
}

func TestBuildServerAndShutdown(t *testing.T) {
	cfg := &AppConfig{ServerConfig: server.DefaultConfig()}
	cfg.ServerConfig.HTTPAddress = "127.0.0.1:0"
	cfg.ServerConfig.GRPCAddress = "127.0.0.1:0"
	log := createLogger("error", "text")

	srv, err := buildServer(cfg, log)
	testutil.RequireNoError(t, err)
	testutil.AssertNoError(t, gracefulShutdown(srv, time.Second, log), "unstarted server shuts down cleanly")

	srv, err = buildServer(cfg, log)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))
	testutil.AssertContains(t, advertiseEndpoint(cfg, srv), "http://127.0.0.1:")
	testutil.AssertNoError(t, gracefulShutdown(srv, 5*time.Second, log))

	cfg.ServerConfig.ShutdownTimeout = 0
	_, err = buildServer(cfg, log)
	testutil.AssertError(t, err)
}

func TestStartRegistration(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &AppConfig{
		ServerConfig:      server.DefaultConfig(),
		RegistryAddr:      mr.Addr(),
		ServiceName:       "locks",
		AdvertiseURL:      "http://locks.test:8080",
		RegistryHeartbeat: 20 * time.Millisecond,
	}
	srv, err := buildServer(cfg, createLogger("error", "text"))
	testutil.RequireNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := startRegistration(ctx, cfg, srv, createLogger("error", "text"))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	registry := resolver.NewRedis(client)

	testutil.Eventually(t, func() bool {
		ep, err := registry.Resolve(context.Background(), "locks")
		return err == nil && ep == "http://locks.test:8080"
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registration did not stop")
	}
	_, err = registry.Resolve(context.Background(), "locks")
	testutil.AssertErrorIs(t, err, resolver.ErrUnknownService)
}

func TestStartRegistration_Disabled(t *testing.T) {
	cfg := &AppConfig{ServerConfig: server.DefaultConfig()}
	srv, err := buildServer(cfg, createLogger("error", "text"))
	testutil.RequireNoError(t, err)

	select {
	case <-startRegistration(context.Background(), cfg, srv, createLogger("error", "text")):
	default:
		t.Fatal("disabled registration must report done immediately")
	}
}

func TestWaitForShutdown(t *testing.T) {
	log := createLogger("error", "text")

	done := make(chan struct{})
	go func() {
		defer close(done)
		waitForShutdown(log)
	}()

	// Give it a moment to set up signal handling
	time.Sleep(10 * time.Millisecond)

	process := os.Process{Pid: os.Getpid()}
	testutil.AssertNoError(t, process.Signal(os.Interrupt), "Should be able to send signal")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("waitForShutdown did not respond to signal in time")
	}
}

func TestConstants(t *testing.T) {
	testutil.AssertEqual(t, "Locksmith Server", AppName)
	testutil.AssertEqual(t, "v1.0.0", AppVersion)
	testutil.AssertContains(t, AppDesc, "lock service")
}

func testWithFlags(t *testing.T, args []string, testFunc func(*testing.T)) {
	oldArgs := os.Args
	oldCommandLine := flag.CommandLine
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{"test"}, args...)

	testFunc(t)
}
