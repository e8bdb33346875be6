package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jathurchan/locksmith/client"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/transport"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	envPrefix = "LOCKCTL"

	keyConfig         = "config"
	keyEndpoint       = "endpoint"
	keyTransport      = "transport"
	keyService        = "service"
	keyRegistryRedis  = "registry-redis"
	keyRequestTimeout = "request-timeout"
	keyLogLevel       = "log-level"
	keyTrace          = "trace"

	transportHTTP = "http"
	transportGRPC = "grpc"
)

// app carries the state shared by subcommands for one invocation.
type app struct {
	v       *viper.Viper
	factory *client.Factory

	closers []func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "lockctl",
		Short: "Acquire, free and inspect locks on a locksmith service",
		Long: `lockctl talks to a locksmith lock service over HTTP or gRPC.

Settings come from flags, LOCKCTL_* environment variables
(e.g. LOCKCTL_ENDPOINT, LOCKCTL_REQUEST_TIMEOUT) or a config file,
in that order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringP(keyConfig, "c", "", "config file (default is $HOME/.config/lockctl/config.yaml)")
	pf.String(keyEndpoint, "http://localhost:8080", "lock service endpoint (HTTP base URL or gRPC target)")
	pf.String(keyTransport, transportHTTP, "wire protocol: http or grpc")
	pf.String(keyService, "locksmith", "logical service name to resolve")
	pf.String(keyRegistryRedis, "", "resolve the service through a Redis registry at this address")
	pf.Duration(keyRequestTimeout, 10*time.Second, "timeout of each remote request")
	pf.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")
	pf.Bool(keyTrace, false, "print a trace span for every remote call to stderr")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(newLockCmd(a), newFreeCmd(a), newExistsCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	cfg := client.DefaultConfig()
	cfg.ServiceName = a.v.GetString(keyService)
	cfg.RequestTimeout = a.v.GetDuration(keyRequestTimeout)
	cfg.Logger = logger.NewStdLoggerTo(cmd.ErrOrStderr(), a.v.GetString(keyLogLevel))

	t, err := a.newTransport()
	if err != nil {
		return err
	}
	cfg.Transport = t

	if a.v.GetBool(keyTrace) {
		tp, err := newTracerProvider(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg.TracerProvider = tp
		a.closers = append(a.closers, tp.Shutdown)
	}

	f, err := client.NewFactory(a.newResolver(cfg.ServiceName), cfg)
	if err != nil {
		return err
	}
	a.factory = f
	return nil
}

func (a *app) loadConfig() error {
	if file := a.v.GetString(keyConfig); file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath("$HOME/.config/lockctl")
		a.v.AddConfigPath(".")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.v.GetString(keyConfig) != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func (a *app) newTransport() (transport.Service, error) {
	switch kind := a.v.GetString(keyTransport); kind {
	case transportHTTP:
		return transport.NewHTTPTransport(transport.WithUserAgent("lockctl")), nil
	case transportGRPC:
		gt := transport.NewGRPCTransport()
		a.closers = append(a.closers, func(context.Context) error { return gt.Close() })
		return gt, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", kind, transportHTTP, transportGRPC)
	}
}

func (a *app) newResolver(service string) resolver.Resolver {
	if addr := a.v.GetString(keyRegistryRedis); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr})
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		return resolver.NewRedis(rc)
	}
	return resolver.NewStatic(map[string]string{service: a.v.GetString(keyEndpoint)})
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}
