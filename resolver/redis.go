package resolver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jathurchan/locksmith/clock"
	"github.com/jathurchan/locksmith/logger"
	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix prefixes the sorted set holding a service's instances.
const DefaultRedisKeyPrefix = "locksmith:services:"

// Redis is a service registry kept in Redis. Each service name maps to a
// sorted set of endpoints scored by the unix-millisecond time their
// registration lapses; instances re-register periodically to stay listed.
// Resolve picks one live instance at random.
type Redis struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
	logger logger.Logger
}

// RedisOption configures a Redis registry.
type RedisOption func(*Redis)

// WithKeyPrefix overrides DefaultRedisKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRedisClock sets the clock used to score and filter registrations.
func WithRedisClock(c clock.Clock) RedisOption {
	return func(r *Redis) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis returns a registry backed by client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: DefaultRedisKeyPrefix,
		clock:  clock.NewStandardClock(),
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("resolver")
	return r
}

// Register lists endpoint under service until ttl elapses.
// Registering an already listed endpoint extends its lease.
func (r *Redis) Register(ctx context.Context, service, endpoint string, ttl time.Duration) error {
	if service == "" {
		return ErrEmptyServiceName
	}
	expiresAt := r.clock.Now().Add(ttl).UnixMilli()
	if err := r.client.ZAdd(ctx, r.key(service), redis.Z{Score: float64(expiresAt), Member: endpoint}).Err(); err != nil {
		return fmt.Errorf("resolver: register %s at %s: %w", service, endpoint, err)
	}
	return nil
}

// Deregister removes endpoint from service.
func (r *Redis) Deregister(ctx context.Context, service, endpoint string) error {
	if err := r.client.ZRem(ctx, r.key(service), endpoint).Err(); err != nil {
		return fmt.Errorf("resolver: deregister %s at %s: %w", service, endpoint, err)
	}
	return nil
}

// Endpoints returns the live endpoints of service.
func (r *Redis) Endpoints(ctx context.Context, service string) ([]string, error) {
	if service == "" {
		return nil, ErrEmptyServiceName
	}
	key := r.key(service)
	now := strconv.FormatInt(r.clock.Now().UnixMilli(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", now)
	live := pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("resolver: lookup %s: %w", service, err)
	}
	return live.Val(), nil
}

// Resolve implements Resolver.
func (r *Redis) Resolve(ctx context.Context, service string) (string, error) {
	endpoints, err := r.Endpoints(ctx, service)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	ep := endpoints[rand.IntN(len(endpoints))]
	r.logger.Debugw("resolved service", "service", service, "endpoint", ep, "candidates", len(endpoints))
	return ep, nil
}

// Heartbeat registers endpoint every interval with a lease of 3*interval
// until ctx is done, then deregisters it. Registration errors are logged
// and retried on the next beat.
func (r *Redis) Heartbeat(ctx context.Context, service, endpoint string, interval time.Duration) {
	lease := 3 * interval
	for {
		if err := r.Register(ctx, service, endpoint, lease); err != nil && ctx.Err() == nil {
			r.logger.Warnw("registry heartbeat failed", "service", service, "endpoint", endpoint, "error", err)
		}
		d := clock.NewDelay(r.clock, interval)
		if err := d.Wait(ctx); err != nil {
			break
		}
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := r.Deregister(cctx, service, endpoint); err != nil {
		r.logger.Warnw("registry deregistration failed", "service", service, "endpoint", endpoint, "error", err)
	}
}

func (r *Redis) key(service string) string {
	return r.prefix + service
}
