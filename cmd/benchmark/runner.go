package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jathurchan/locksmith/client"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/resolver"
	"github.com/jathurchan/locksmith/server"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Results is the outcome of one benchmark run.
type Results struct {
	Config          *Config        `json:"config"`
	StartTime       time.Time      `json:"start_time"`
	Duration        string         `json:"duration"`
	Latency         LatencyStats   `json:"acquire_latency"`
	Throughput      float64        `json:"throughput_ops_per_sec"`
	ContentionRatio float64        `json:"contention_ratio"`
	AverageAttempts float64        `json:"average_attempts"`
	Timeouts        int64          `json:"timeouts"`
	Overlaps        int64          `json:"overlaps"`
	Errors          map[string]int `json:"errors,omitempty"`
}

// runner drives workers against a single Factory and records their outcomes.
type runner struct {
	cfg     *Config
	factory *client.Factory
	logger  logger.Logger

	mu        sync.Mutex
	latencies []time.Duration
	errors    map[string]int

	total    atomic.Int64
	ok       atomic.Int64
	attempts atomic.Int64
	timeouts atomic.Int64
	overlaps atomic.Int64

	// holders tracks which worker currently holds each resource, to detect
	// two workers inside the same critical section.
	holders []atomic.Int32
}

func newRunner(cfg *Config, endpoint string, log logger.Logger, reg prometheus.Registerer) (*runner, error) {
	metrics, err := client.NewPrometheusMetrics(reg)
	if err != nil {
		return nil, err
	}

	backoff := client.DefaultBackoffPolicy()
	backoff.Unit = cfg.BackoffUnit

	factory, err := client.NewFactoryBuilder(resolver.Fixed(endpoint)).
		WithBackoff(backoff).
		WithLogger(log).
		WithMetrics(metrics).
		Build()
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg:     cfg,
		factory: factory,
		logger:  log.WithComponent("benchmark"),
		errors:  make(map[string]int),
		holders: make([]atomic.Int32, cfg.Resources),
	}, nil
}

// run executes every worker to completion and returns the aggregated results.
// The first worker error that is not a lock outcome cancels the run.
func (r *runner) run(ctx context.Context) (*Results, error) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range r.cfg.Workers {
		g.Go(func() error { return r.worker(gctx, w) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	res := &Results{
		Config:          r.cfg,
		StartTime:       start,
		Duration:        elapsed.Round(time.Millisecond).String(),
		Latency:         calculateLatencyStats(r.latencies, r.ok.Load(), r.total.Load()),
		Throughput:      throughput(r.ok.Load(), elapsed),
		ContentionRatio: r.cfg.ContentionRatio(),
		Timeouts:        r.timeouts.Load(),
		Overlaps:        r.overlaps.Load(),
		Errors:          r.errors,
	}
	if n := r.total.Load(); n > 0 {
		res.AverageAttempts = float64(r.attempts.Load()) / float64(n)
	}
	return res, nil
}

func (r *runner) worker(ctx context.Context, id int) error {
	for op := range r.cfg.OpsPerWorker {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := (id + op) % r.cfg.Resources
		if err := r.cycle(ctx, id, res); err != nil {
			return err
		}
	}
	return nil
}

// cycle performs one lock, hold, free round on resource index res.
func (r *runner) cycle(ctx context.Context, worker, res int) error {
	h, err := r.factory.CreateLock(fmt.Sprintf("bench/%d", res),
		client.WithTTL(r.cfg.TTL),
		client.WithTimeout(r.cfg.LockTimeout),
		client.WithKeepAlive(false),
	)
	if err != nil {
		return err
	}

	r.total.Add(1)
	start := time.Now()
	err = h.Lock(ctx)
	r.attempts.Add(int64(h.Attempts()))
	if err != nil {
		switch {
		case errors.Is(err, client.ErrCanceled):
			return ctx.Err()
		case errors.Is(err, client.ErrAcquireTimeout):
			r.timeouts.Add(1)
		}
		r.recordError(err)
		return nil
	}
	latency := time.Since(start)

	if !r.holders[res].CompareAndSwap(0, int32(worker+1)) {
		r.overlaps.Add(1)
		r.logger.Errorw("two holders inside one critical section", "resource", res, "worker", worker)
	}
	if r.cfg.HoldTime > 0 {
		time.Sleep(r.cfg.HoldTime)
	}
	r.holders[res].CompareAndSwap(int32(worker+1), 0)

	if err := h.Free(context.WithoutCancel(ctx)); err != nil {
		r.recordError(err)
		return nil
	}

	r.ok.Add(1)
	r.mu.Lock()
	r.latencies = append(r.latencies, latency)
	r.mu.Unlock()
	return nil
}

func (r *runner) recordError(err error) {
	if r.cfg.Verbose {
		r.logger.Warnw("operation failed", "error", err)
	}
	key := "other"
	var ce *client.ClientError
	if errors.As(err, &ce) {
		key = ce.Op
	}
	if errors.Is(err, client.ErrAcquireTimeout) {
		key = "timeout"
	}
	r.mu.Lock()
	r.errors[key]++
	r.mu.Unlock()
}

// startEmbedded starts an in-process lock service on a loopback port.
func startEmbedded(ctx context.Context, log logger.Logger) (*server.Server, string, error) {
	cfg := server.DefaultConfig()
	cfg.HTTPAddress = "127.0.0.1:0"
	cfg.GRPCAddress = ""
	cfg.Logger = log
	srv, err := server.New(cfg)
	if err != nil {
		return nil, "", err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, "", err
	}
	return srv, "http://" + srv.HTTPAddr().String(), nil
}
