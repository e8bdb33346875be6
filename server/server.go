// Package server implements an in-memory, TTL-enforcing lock service that
// exposes the HTTP and gRPC APIs spoken by the transport package. It is a
// single-node development and test service, not a replicated one.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jathurchan/locksmith/logger"
	"google.golang.org/grpc"
)

// Server bundles a Store with its HTTP and gRPC front ends.
type Server struct {
	cfg    Config
	store  *Store
	logger logger.Logger

	router  *gin.Engine
	grpcSrv *grpc.Server

	mu        sync.Mutex
	started   bool
	httpSrv   *http.Server
	httpAddr  net.Addr
	grpcAddr  net.Addr
	stopSweep context.CancelFunc
	wg        sync.WaitGroup
}

// New validates cfg and builds a Server. Nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	log := cfg.Logger.WithComponent("server")

	store := NewStore(cfg.Clock, cfg.Logger, cfg.Metrics)

	var limiter RateLimiter
	if cfg.EnableRateLimit {
		limiter = NewTokenBucketRateLimiter(cfg.RateLimit, cfg.RateLimitBurst, cfg.RateLimitWindow, log)
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(&httpHandler{
		store:   store,
		maxTTL:  cfg.MaxLockTTL,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, limiter, cfg.MaxRequestSize)

	grpcSrv := newGRPCServer(&grpcHandler{
		store:   store,
		maxTTL:  cfg.MaxLockTTL,
		limiter: limiter,
		logger:  cfg.Logger.WithComponent("grpc"),
		metrics: cfg.Metrics,
	})

	return &Server{
		cfg:     cfg,
		store:   store,
		logger:  log,
		router:  router,
		grpcSrv: grpcSrv,
	}, nil
}

// Handler returns the HTTP API handler, for mounting on an external listener.
func (s *Server) Handler() http.Handler { return s.router }

// GRPCServer returns the gRPC server, for serving on an external listener.
func (s *Server) GRPCServer() *grpc.Server { return s.grpcSrv }

// Store returns the underlying lock table.
func (s *Server) Store() *Store { return s.store }

// HTTPAddr returns the bound HTTP address after Start, or nil.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr returns the bound gRPC address after Start, or nil.
func (s *Server) GRPCAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

// Start binds the configured listeners and begins serving in the background,
// together with the periodic expiry sweep. It returns once both listeners are bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrServerAlreadyStarted
	}

	var lc net.ListenConfig
	var httpLis, grpcLis net.Listener
	var err error

	if s.cfg.HTTPAddress != "" {
		if httpLis, err = lc.Listen(ctx, "tcp", s.cfg.HTTPAddress); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTPAddress, err)
		}
	}
	if s.cfg.GRPCAddress != "" {
		if grpcLis, err = lc.Listen(ctx, "tcp", s.cfg.GRPCAddress); err != nil {
			if httpLis != nil {
				_ = httpLis.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddress, err)
		}
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	s.wg.Add(1)
	go s.runExpiry(sweepCtx)

	if httpLis != nil {
		s.httpAddr = httpLis.Addr()
		s.httpSrv = &http.Server{Handler: s.router}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Errorw("HTTP server stopped", "error", err)
			}
		}()
		s.logger.Infow("HTTP API listening", "address", s.httpAddr.String())
	}
	if grpcLis != nil {
		s.grpcAddr = grpcLis.Addr()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				s.logger.Errorw("gRPC server stopped", "error", err)
			}
		}()
		s.logger.Infow("gRPC API listening", "address", s.grpcAddr.String())
	}

	s.started = true
	return nil
}

// Stop gracefully shuts down both front ends and the expiry sweep. The
// provided context bounds the shutdown, capped at Config.ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrServerNotStarted
	}
	s.started = false

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcSrv.Stop()
		errs = append(errs, fmt.Errorf("grpc shutdown: %w", ctx.Err()))
	}

	s.stopSweep()
	s.wg.Wait()
	s.logger.Infow("server stopped")
	return errors.Join(errs...)
}

// runExpiry sweeps expired locks every ExpiryInterval until ctx is done.
func (s *Server) runExpiry(ctx context.Context) {
	defer s.wg.Done()
	for {
		timer := s.cfg.Clock.NewTimer(s.cfg.ExpiryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
			if n := s.store.Tick(); n > 0 {
				s.logger.Debugw("expired locks swept", "count", n)
			}
		}
	}
}
