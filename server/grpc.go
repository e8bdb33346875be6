package server

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jathurchan/locksmith/logger"
	"github.com/jathurchan/locksmith/transport"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// grpcHandler serves the lock service's gRPC API. Messages are
// google.protobuf.Struct values, dispatched by full method name from an
// unknown-service handler so no generated stubs are required.
type grpcHandler struct {
	store   *Store
	maxTTL  time.Duration
	limiter RateLimiter
	logger  logger.Logger
	metrics ServerMetrics
}

// newGRPCServer returns a *grpc.Server whose only service is the lock API.
func newGRPCServer(h *grpcHandler, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnknownServiceHandler(h.handleStream))
	return grpc.NewServer(opts...)
}

func (h *grpcHandler) handleStream(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "method name unavailable")
	}

	if h.limiter != nil && !h.limiter.Allow() {
		h.metrics.IncrRateLimited("grpc")
		return statusWithReason(codes.ResourceExhausted, ErrRateLimited)
	}

	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	resp, err := h.dispatch(stream.Context(), method, req)
	if err != nil {
		return err
	}
	return stream.SendMsg(resp)
}

func (h *grpcHandler) dispatch(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		op   string
		resp *structpb.Struct
		err  error
	)
	start := time.Now()

	switch method {
	case transport.GRPCMethodCreate:
		op = transport.OpCreate
		resp, err = h.create(req)
	case transport.GRPCMethodRenew:
		op = transport.OpRenew
		resp, err = h.renew(req)
	case transport.GRPCMethodDelete:
		op = transport.OpDelete
		resp, err = h.delete(req)
	case transport.GRPCMethodExists:
		op = transport.OpExists
		resp, err = h.exists(req)
	default:
		h.logger.Warnw("unknown gRPC method", "method", method)
		st, _ := status.New(codes.Unimplemented, "unknown method "+method).WithDetails(&errdetails.ErrorInfo{
			Reason: ReasonUnknownMethod,
			Domain: errorDomain,
		})
		return nil, st.Err()
	}

	h.metrics.ObserveRequestLatency("grpc", op, time.Since(start))
	if err != nil {
		h.metrics.IncrRequest("grpc", op, outcomeOf(err))
		return nil, h.toStatus(ctx, op, err)
	}
	h.metrics.IncrRequest("grpc", op, "ok")
	return resp, nil
}

func (h *grpcHandler) create(req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	resource := fields["identifier"].GetStringValue()
	if err := validateResource(resource); err != nil {
		return nil, err
	}
	secs := fields["ttl"].GetNumberValue()
	if secs != math.Trunc(secs) {
		return nil, NewValidationError("ttl", secs, "must be a whole number of seconds")
	}
	ttl, err := validateTTL(int64(secs), h.maxTTL)
	if err != nil {
		return nil, err
	}

	lock, err := h.store.Create(resource, ttl)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"id": lock.ID})
}

func (h *grpcHandler) renew(req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if err := validateLockID(id); err != nil {
		return nil, err
	}
	lock, err := h.store.Renew(id)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"id":         lock.ID,
		"expires_at": lock.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *grpcHandler) delete(req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if err := validateLockID(id); err != nil {
		return nil, err
	}
	if err := h.store.Delete(id); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

func (h *grpcHandler) exists(req *structpb.Struct) (*structpb.Struct, error) {
	resource := req.GetFields()["identifier"].GetStringValue()
	if err := validateResource(resource); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"exists": h.store.Exists(resource)})
}

func (h *grpcHandler) toStatus(ctx context.Context, op string, err error) error {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrLockHeld):
		return statusWithReason(codes.AlreadyExists, err)
	case errors.Is(err, ErrLockNotFound):
		return statusWithReason(codes.NotFound, err)
	case errors.As(err, &ve):
		return statusWithReason(codes.InvalidArgument, err)
	default:
		h.logger.Errorw("gRPC request failed", "op", op, "error", err, "ctx_err", ctx.Err())
		return status.Error(codes.Internal, err.Error())
	}
}

// statusWithReason builds a status error carrying an ErrorInfo detail.
func statusWithReason(code codes.Code, err error) error {
	st := status.New(code, err.Error())
	if reason := reasonFor(err); reason != "" {
		if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}); derr == nil {
			st = withInfo
		}
	}
	return st.Err()
}

func outcomeOf(err error) string {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrLockHeld):
		return "conflict"
	case errors.Is(err, ErrLockNotFound):
		return "not_found"
	case errors.As(err, &ve):
		return "invalid"
	default:
		return "error"
	}
}
