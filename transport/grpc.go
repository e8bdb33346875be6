package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified gRPC method names of the lock service. Requests and
// responses are google.protobuf.Struct messages carrying the same fields as
// the HTTP API's JSON bodies.
const (
	GRPCServiceName  = "locksmith.v1.LockService"
	GRPCMethodCreate = "/" + GRPCServiceName + "/Create"
	GRPCMethodRenew  = "/" + GRPCServiceName + "/Renew"
	GRPCMethodDelete = "/" + GRPCServiceName + "/Delete"
	GRPCMethodExists = "/" + GRPCServiceName + "/Exists"
)

// ErrTransportClosed is returned when using a GRPCTransport after Close.
var ErrTransportClosed = errors.New("transport: closed")

// connector establishes gRPC connections. Useful for injecting test dialers.
type connector interface {
	GetConnection(endpoint string, opts ...grpc.DialOption) (*grpc.ClientConn, error)
}

// grpcConnector implements the default connector.
type grpcConnector struct{}

func (c *grpcConnector) GetConnection(endpoint string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	return grpc.NewClient(endpoint, opts...)
}

// GRPCTransport speaks the lock service's gRPC API. Connections are cached per
// endpoint; the endpoint itself is still supplied fresh on every call.
type GRPCTransport struct {
	dialOpts  []grpc.DialOption
	connector connector

	mu     sync.RWMutex
	conns  map[string]*grpc.ClientConn
	closed atomic.Bool
}

// NewGRPCTransport returns a gRPC-backed Service. Without dial options it
// connects with insecure transport credentials.
func NewGRPCTransport(dialOpts ...grpc.DialOption) *GRPCTransport {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &GRPCTransport{
		dialOpts:  dialOpts,
		connector: &grpcConnector{},
		conns:     make(map[string]*grpc.ClientConn),
	}
}

// Create implements Service.
func (t *GRPCTransport) Create(ctx context.Context, endpoint, resourceID string, ttl time.Duration) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"identifier": resourceID,
		"ttl":        TTLSeconds(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("transport: %s: %w", OpCreate, err)
	}

	resp := &structpb.Struct{}
	if err := t.invoke(ctx, endpoint, GRPCMethodCreate, req, resp); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", ErrConflict
		}
		return "", fromGRPCError(OpCreate, err)
	}

	id := resp.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", fmt.Errorf("%w: %s: response has no id", ErrProtocol, OpCreate)
	}
	return id, nil
}

// Renew implements Service.
func (t *GRPCTransport) Renew(ctx context.Context, endpoint, lockID string) error {
	return t.callWithLockID(ctx, OpRenew, GRPCMethodRenew, endpoint, lockID)
}

// Delete implements Service.
func (t *GRPCTransport) Delete(ctx context.Context, endpoint, lockID string) error {
	return t.callWithLockID(ctx, OpDelete, GRPCMethodDelete, endpoint, lockID)
}

// Exists implements Service.
func (t *GRPCTransport) Exists(ctx context.Context, endpoint, resourceID string) (bool, error) {
	req, err := structpb.NewStruct(map[string]any{"identifier": resourceID})
	if err != nil {
		return false, fmt.Errorf("transport: %s: %w", OpExists, err)
	}
	resp := &structpb.Struct{}
	if err := t.invoke(ctx, endpoint, GRPCMethodExists, req, resp); err != nil {
		return false, fromGRPCError(OpExists, err)
	}
	return resp.GetFields()["exists"].GetBoolValue(), nil
}

// Close shuts down all cached connections. The transport cannot be used afterwards.
func (t *GRPCTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrTransportClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for ep, conn := range t.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection to %s: %w", ep, err))
		}
	}
	t.conns = make(map[string]*grpc.ClientConn)
	return errors.Join(errs...)
}

func (t *GRPCTransport) callWithLockID(ctx context.Context, op, method, endpoint, lockID string) error {
	req, err := structpb.NewStruct(map[string]any{"id": lockID})
	if err != nil {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	if err := t.invoke(ctx, endpoint, method, req, &structpb.Struct{}); err != nil {
		return fromGRPCError(op, err)
	}
	return nil
}

func (t *GRPCTransport) invoke(ctx context.Context, endpoint, method string, req, resp *structpb.Struct) error {
	conn, err := t.getConnection(endpoint)
	if err != nil {
		return err
	}
	return conn.Invoke(ctx, method, req, resp)
}

// getConnection returns a cached connection or establishes a new one.
func (t *GRPCTransport) getConnection(endpoint string) (*grpc.ClientConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	t.mu.RLock()
	if conn, ok := t.conns[endpoint]; ok {
		t.mu.RUnlock()
		return conn, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[endpoint]; ok {
		return conn, nil
	}

	conn, err := t.connector.GetConnection(endpoint, t.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	t.conns[endpoint] = conn
	return conn, nil
}

// fromGRPCError converts a gRPC status error into a *StatusError with an
// HTTP-equivalent code. Context errors and non-status errors are wrapped as-is.
func fromGRPCError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("transport: %s: %w", op, err)
	}
	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("transport: %s: %w", op, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("transport: %s: %w", op, context.DeadlineExceeded)
	}

	reason := st.Message()
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() != "" {
			reason = info.GetReason()
			break
		}
	}
	return &StatusError{Op: op, Code: httpStatusFromCode(st.Code()), Reason: reason}
}

// httpStatusFromCode maps gRPC codes onto the HTTP statuses used by StatusError.
func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
