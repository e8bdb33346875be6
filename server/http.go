package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/transport"
)

// httpHandler serves the lock service's HTTP API on top of a Store.
type httpHandler struct {
	store   *Store
	maxTTL  time.Duration
	logger  logger.Logger
	metrics ServerMetrics
}

// newRouter builds the gin engine for the HTTP API. Resource identifiers are
// matched on the escaped path so that they may contain '/'.
func newRouter(h *httpHandler, limiter RateLimiter, maxBody int64) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery(), requestLogger(h.logger))
	if limiter != nil {
		router.Use(rateLimitMiddleware(limiter, h.metrics))
	}
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.POST("/locks", h.create)
	router.PATCH("/locks/:id", h.renew)
	router.DELETE("/locks/:id", h.delete)
	router.GET("/resources/:resource/lock", h.exists)
	return router
}

func (h *httpHandler) create(c *gin.Context) {
	start := time.Now()
	defer func() { h.metrics.ObserveRequestLatency("http", transport.OpCreate, time.Since(start)) }()

	var req transport.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.OpCreate, NewValidationError("body", nil, err.Error()))
		return
	}
	if err := validateResource(req.Identifier); err != nil {
		h.fail(c, transport.OpCreate, err)
		return
	}
	ttl, err := validateTTL(req.TTL, h.maxTTL)
	if err != nil {
		h.fail(c, transport.OpCreate, err)
		return
	}

	lock, err := h.store.Create(req.Identifier, ttl)
	if err != nil {
		h.fail(c, transport.OpCreate, err)
		return
	}
	h.metrics.IncrRequest("http", transport.OpCreate, "ok")
	c.JSON(http.StatusCreated, transport.CreateResponse{ID: lock.ID})
}

func (h *httpHandler) renew(c *gin.Context) {
	start := time.Now()
	defer func() { h.metrics.ObserveRequestLatency("http", transport.OpRenew, time.Since(start)) }()

	lock, err := h.store.Renew(c.Param("id"))
	if err != nil {
		h.fail(c, transport.OpRenew, err)
		return
	}
	h.metrics.IncrRequest("http", transport.OpRenew, "ok")
	c.JSON(http.StatusOK, lock)
}

func (h *httpHandler) delete(c *gin.Context) {
	start := time.Now()
	defer func() { h.metrics.ObserveRequestLatency("http", transport.OpDelete, time.Since(start)) }()

	if err := h.store.Delete(c.Param("id")); err != nil {
		h.fail(c, transport.OpDelete, err)
		return
	}
	h.metrics.IncrRequest("http", transport.OpDelete, "ok")
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) exists(c *gin.Context) {
	start := time.Now()
	defer func() { h.metrics.ObserveRequestLatency("http", transport.OpExists, time.Since(start)) }()

	resource := c.Param("resource")
	if err := validateResource(resource); err != nil {
		h.fail(c, transport.OpExists, err)
		return
	}
	h.metrics.IncrRequest("http", transport.OpExists, "ok")
	if h.store.Exists(resource) {
		c.JSON(http.StatusOK, transport.ExistsResponse{Exists: true})
		return
	}
	c.JSON(http.StatusNotFound, transport.ExistsResponse{Exists: false})
}

// fail writes the error response matching err.
func (h *httpHandler) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrLockHeld):
		status = http.StatusConflict
	case errors.Is(err, ErrLockNotFound):
		status = http.StatusNotFound
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	default:
		h.logger.Errorw("HTTP request failed", "op", op, "error", err)
	}
	h.metrics.IncrRequest("http", op, outcomeOf(err))
	c.JSON(status, errorBody(err))
}

func errorBody(err error) transport.ErrorResponse {
	if reason := reasonFor(err); reason != "" {
		return transport.ErrorResponse{Error: reason}
	}
	return transport.ErrorResponse{Error: err.Error()}
}

// requestLogger logs one line per request, escalating the level with the status code.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		kvs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Errorw("request", kvs...)
		case status >= http.StatusBadRequest:
			log.Warnw("request", kvs...)
		default:
			log.Debugw("request", kvs...)
		}
	}
}
