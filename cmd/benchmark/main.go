// Command benchmark measures lock acquisition latency and throughput under
// configurable contention, against a running service or an embedded one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jathurchan/locksmith/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	exitInterrupted = 130 // Exit code for SIGINT or SIGTERM
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg, err := parseConfig(fs, args)
	if err != nil {
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitFailure
	}

	level := "warn"
	if cfg.Verbose {
		level = "debug"
	}
	log := logger.NewStdLoggerTo(stderr, level)

	if err := execute(ctx, cfg, log); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "Benchmark canceled")
			return exitInterrupted
		}
		fmt.Fprintf(stderr, "Benchmark failed: %v\n", err)
		return exitFailure
	}
	return exitSuccess
}

func execute(ctx context.Context, cfg *Config, log logger.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		srv, url, err := startEmbedded(ctx, log)
		if err != nil {
			return fmt.Errorf("starting embedded service: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
		endpoint = url
	}

	r, err := newRunner(cfg, endpoint, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	results, err := r.run(ctx)
	if err != nil {
		return err
	}

	reporter, w, err := NewReporter(cfg)
	if err != nil {
		return err
	}
	if w != os.Stdout {
		defer w.Close()
	}
	if err := reporter.Generate(results); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if results.Overlaps > 0 {
		return fmt.Errorf("%d overlapping lock holders observed", results.Overlaps)
	}
	return nil
}
