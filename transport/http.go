package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20

	defaultUserAgent = "locksmith-client"
)

// CreateRequest is the JSON body of a create call.
type CreateRequest struct {
	Identifier string `json:"identifier"`
	TTL        int64  `json:"ttl"`
}

// CreateResponse is the JSON body of a successful create call.
type CreateResponse struct {
	ID string `json:"id"`
}

// ExistsResponse is the JSON body of a successful exists probe.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// ErrorResponse is the JSON body the service uses to describe a failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HTTPTransport speaks the lock service's HTTP API:
//
//	POST   {endpoint}/locks                   create
//	PATCH  {endpoint}/locks/{id}              renew
//	DELETE {endpoint}/locks/{id}              delete
//	GET    {endpoint}/resources/{id}/lock     exists
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// NewHTTPTransport returns an HTTP-backed Service.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create implements Service.
func (t *HTTPTransport) Create(ctx context.Context, endpoint, resourceID string, ttl time.Duration) (string, error) {
	req := CreateRequest{Identifier: resourceID, TTL: TTLSeconds(ttl)}
	status, body, err := t.do(ctx, http.MethodPost, joinURL(endpoint, "locks"), req)
	if err != nil {
		return "", fmt.Errorf("transport: %s: %w", OpCreate, err)
	}

	switch status {
	case http.StatusCreated:
		var resp CreateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrProtocol, OpCreate, err)
		}
		if resp.ID == "" {
			return "", fmt.Errorf("%w: %s: response has no id", ErrProtocol, OpCreate)
		}
		return resp.ID, nil
	case http.StatusConflict:
		return "", ErrConflict
	default:
		return "", statusError(OpCreate, status, body)
	}
}

// Renew implements Service.
func (t *HTTPTransport) Renew(ctx context.Context, endpoint, lockID string) error {
	return t.expectSuccess(ctx, OpRenew, http.MethodPatch, joinURL(endpoint, "locks", lockID))
}

// Delete implements Service.
func (t *HTTPTransport) Delete(ctx context.Context, endpoint, lockID string) error {
	return t.expectSuccess(ctx, OpDelete, http.MethodDelete, joinURL(endpoint, "locks", lockID))
}

// Exists implements Service.
func (t *HTTPTransport) Exists(ctx context.Context, endpoint, resourceID string) (bool, error) {
	status, body, err := t.do(ctx, http.MethodGet, joinURL(endpoint, "resources", resourceID, "lock"), nil)
	if err != nil {
		return false, fmt.Errorf("transport: %s: %w", OpExists, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(OpExists, status, body)
	}
}

func (t *HTTPTransport) expectSuccess(ctx context.Context, op, method, target string) error {
	status, body, err := t.do(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	if status < 200 || status > 299 {
		return statusError(op, status, body)
	}
	return nil
}

// do issues one request and returns the status code and the (bounded) body.
func (t *HTTPTransport) do(ctx context.Context, method, target string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func statusError(op string, status int, body []byte) *StatusError {
	e := &StatusError{Op: op, Code: status}
	var er ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &er) == nil {
		e.Reason = er.Error
	}
	return e
}

// joinURL appends escaped path segments to a base endpoint.
func joinURL(endpoint string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(endpoint, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
