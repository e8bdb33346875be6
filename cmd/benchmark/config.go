package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const benchmarkVersion = "v1.0.0"

// Config holds the benchmark settings.
type Config struct {
	// Endpoint is the lock service base URL. Empty starts an embedded service.
	Endpoint string `json:"endpoint,omitempty"`

	// Workers is the number of goroutines competing for locks.
	Workers int `json:"workers"`

	// Resources is the number of distinct resources the workers share.
	// Workers/Resources is the contention ratio.
	Resources int `json:"resources"`

	// OpsPerWorker is how many lock/free cycles each worker performs.
	OpsPerWorker int `json:"ops_per_worker"`

	TTL          time.Duration `json:"ttl"`           // Lock TTL sent to the service
	LockTimeout  time.Duration `json:"lock_timeout"`  // Acquisition budget per operation
	HoldTime     time.Duration `json:"hold_time"`     // Time spent holding each lock
	BackoffUnit  time.Duration `json:"backoff_unit"`  // First retry delay after a conflict
	OutputFormat string        `json:"output_format"` // "text" or "json"
	OutputFile   string        `json:"output_file,omitempty"`
	Verbose      bool          `json:"verbose"`
}

// DefaultConfig returns a small, medium-contention run against an embedded service.
func DefaultConfig() *Config {
	return &Config{
		Workers:      16,
		Resources:    4,
		OpsPerWorker: 50,
		TTL:          10 * time.Second,
		LockTimeout:  30 * time.Second,
		HoldTime:     2 * time.Millisecond,
		BackoffUnit:  5 * time.Millisecond,
		OutputFormat: "text",
	}
}

// Validate checks the configuration for values the runner cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Resources <= 0 {
		errs = append(errs, errors.New("resources must be positive"))
	}
	if c.OpsPerWorker <= 0 {
		errs = append(errs, errors.New("ops-per-worker must be positive"))
	}
	if c.TTL < time.Second {
		errs = append(errs, errors.New("ttl must be at least 1s"))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("lock-timeout must be positive"))
	}
	if c.HoldTime < 0 {
		errs = append(errs, errors.New("hold must not be negative"))
	}
	if c.BackoffUnit <= 0 {
		errs = append(errs, errors.New("backoff-unit must be positive"))
	}
	switch strings.ToLower(c.OutputFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", c.OutputFormat))
	}
	return errors.Join(errs...)
}

// ContentionRatio is the number of workers per resource.
func (c *Config) ContentionRatio() float64 {
	return float64(c.Workers) / float64(c.Resources)
}

func parseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs.StringVar(&cfg.Endpoint, "endpoint", "", "lock service base URL (empty starts an embedded service)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers")
	fs.IntVar(&cfg.Resources, "resources", cfg.Resources, "number of shared resources")
	fs.IntVar(&cfg.OpsPerWorker, "ops", cfg.OpsPerWorker, "lock/free cycles per worker")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "lock TTL")
	fs.DurationVar(&cfg.LockTimeout, "lock-timeout", cfg.LockTimeout, "acquisition budget per operation")
	fs.DurationVar(&cfg.HoldTime, "hold", cfg.HoldTime, "time each lock is held")
	fs.DurationVar(&cfg.BackoffUnit, "backoff-unit", cfg.BackoffUnit, "first retry delay after a conflict")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "report format: text or json")
	fs.StringVar(&cfg.OutputFile, "out", "", "write the report to this file instead of stdout")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "log every conflict and failure")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
