package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

const (
	AppName    = "Locksmith Server"
	AppVersion = "v1.0.0"
	AppDesc    = "In-memory lock service with TTL expiry, serving HTTP and gRPC APIs"

	defaultServiceName       = "locksmith"
	defaultRegistryHeartbeat = 5 * time.Second
)

// AppConfig holds everything parsed from the command line.
type AppConfig struct {
	ServerConfig server.Config

	LogLevel       string
	LogFormat      string
	MetricsAddress string

	// Redis service registry. Empty RegistryAddr disables registration.
	RegistryAddr      string
	ServiceName       string
	AdvertiseURL      string
	RegistryHeartbeat time.Duration

	ShowVersion bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := parseAndValidateFlags()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.ShowVersion {
		fmt.Printf("%s %s\n", AppName, AppVersion)
		return nil
	}

	log := createLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.ServerConfig.Logger = log

	reg := prometheus.NewRegistry()
	metrics, err := server.NewPrometheusServerMetrics(reg)
	if err != nil {
		return fmt.Errorf("metrics setup: %w", err)
	}
	cfg.ServerConfig.Metrics = metrics

	srv, err := buildServer(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Infow("server started", "app", AppName, "version", AppVersion)

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		metricsSrv = startMetricsServer(cfg.MetricsAddress, reg, log)
	}

	registryDone := startRegistration(ctx, cfg, srv, log)

	waitForShutdown(log)
	cancel()
	<-registryDone

	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	return gracefulShutdown(srv, cfg.ServerConfig.ShutdownTimeout, log)
}

// parseAndValidateFlags reads flag.CommandLine into an AppConfig.
func parseAndValidateFlags() (*AppConfig, error) {
	defaults := server.DefaultConfig()
	cfg := &AppConfig{ServerConfig: defaults}
	sc := &cfg.ServerConfig

	flag.StringVar(&sc.HTTPAddress, "http-addr", defaults.HTTPAddress, "HTTP API bind address (empty disables)")
	flag.StringVar(&sc.GRPCAddress, "grpc-addr", defaults.GRPCAddress, "gRPC API bind address (empty disables)")
	flag.DurationVar(&sc.ShutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")
	flag.Int64Var(&sc.MaxRequestSize, "max-request-size", defaults.MaxRequestSize, "Maximum HTTP request body size in bytes")
	flag.DurationVar(&sc.MaxLockTTL, "max-ttl", defaults.MaxLockTTL, "Maximum TTL a client may request")
	flag.DurationVar(&sc.ExpiryInterval, "expiry-interval", defaults.ExpiryInterval, "How often expired locks are swept")
	flag.BoolVar(&sc.EnableRateLimit, "rate-limit", defaults.EnableRateLimit, "Enable request rate limiting")
	flag.IntVar(&sc.RateLimit, "rate-limit-requests", defaults.RateLimit, "Requests allowed per rate limit window")
	flag.IntVar(&sc.RateLimitBurst, "rate-limit-burst", defaults.RateLimitBurst, "Rate limiter burst size")
	flag.DurationVar(&sc.RateLimitWindow, "rate-limit-window", defaults.RateLimitWindow, "Rate limit window")

	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log format (text, json)")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", "", "Prometheus metrics bind address (empty disables)")

	flag.StringVar(&cfg.RegistryAddr, "registry-redis", "", "Redis address of the service registry (empty disables)")
	flag.StringVar(&cfg.ServiceName, "service-name", defaultServiceName, "Service name to register under")
	flag.StringVar(&cfg.AdvertiseURL, "advertise", "", "Endpoint to register (defaults to the bound HTTP address)")
	flag.DurationVar(&cfg.RegistryHeartbeat, "registry-heartbeat", defaultRegistryHeartbeat, "Registry heartbeat interval")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg, nil
	}
	if sc.HTTPAddress == "" && sc.GRPCAddress == "" {
		return nil, errors.New("at least one of --http-addr or --grpc-addr is required")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid --log-format %q", cfg.LogFormat)
	}
	if cfg.RegistryAddr != "" {
		if cfg.ServiceName == "" {
			return nil, errors.New("--service-name is required with --registry-redis")
		}
		if cfg.RegistryHeartbeat <= 0 {
			return nil, errors.New("--registry-heartbeat must be positive")
		}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createLogger returns a logger writing to stdout at the given level.
func createLogger(level, format string) logger.Logger {
	if format == "json" {
		return logger.NewJSONLogger(os.Stdout, "locksmith-server", level)
	}
	return logger.NewStdLogger(level)
}

// buildServer constructs the lock service from cfg.
func buildServer(cfg *AppConfig, log logger.Logger) (*server.Server, error) {
	sc := cfg.ServerConfig
	if sc.Logger == nil {
		sc.Logger = log
	}
	srv, err := server.New(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to build server: %w", err)
	}
	return srv, nil
}

func startMetricsServer(addr string, reg *prometheus.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()
	log.Infow("metrics listening", "address", addr)
	return srv
}

// startRegistration keeps the server listed in the Redis registry until ctx
// is done. The returned channel closes once it has deregistered.
func startRegistration(ctx context.Context, cfg *AppConfig, srv *server.Server, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cfg.RegistryAddr == "" {
		close(done)
		return done
	}

	endpoint := advertiseEndpoint(cfg, srv)
	client := redis.NewClient(&redis.Options{Addr: cfg.RegistryAddr})
	registry := resolver.NewRedis(client, resolver.WithRedisLogger(log))

	go func() {
		defer close(done)
		defer client.Close()
		log.Infow("registering with service registry",
			"registry", cfg.RegistryAddr, "service", cfg.ServiceName, "endpoint", endpoint)
		registry.Heartbeat(ctx, cfg.ServiceName, endpoint, cfg.RegistryHeartbeat)
	}()
	return done
}

func advertiseEndpoint(cfg *AppConfig, srv *server.Server) string {
	if cfg.AdvertiseURL != "" {
		return cfg.AdvertiseURL
	}
	if addr := srv.HTTPAddr(); addr != nil {
		return "http://" + addr.String()
	}
	if addr := srv.GRPCAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	log.Infow("shutdown signal received", "signal", sig.String())
}

// gracefulShutdown stops srv within timeout. A server that never started is not an error.
func gracefulShutdown(srv *server.Server, timeout time.Duration, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil && !errors.Is(err, server.ErrServerNotStarted) {
		log.Errorw("shutdown failed", "error", err)
		return err
	}
	log.Infow("shutdown complete")
	return nil
}
