package transport

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jathurchan/locksmith/transport"

// Traced wraps a Service so that every call produces a span named
// "LockService.<Op>". Conflicts are recorded as an attribute, not as a span error.
type Traced struct {
	next   Service
	tracer trace.Tracer
}

// NewTraced decorates next. A nil provider falls back to the global one.
func NewTraced(next Service, tp trace.TracerProvider) *Traced {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{next: next, tracer: tp.Tracer(tracerName)}
}

// Create implements Service.
func (t *Traced) Create(ctx context.Context, endpoint, resourceID string, ttl time.Duration) (string, error) {
	ctx, span := t.start(ctx, OpCreate, endpoint,
		attribute.String("lock.resource", resourceID),
		attribute.Int64("lock.ttl_seconds", TTLSeconds(ttl)),
	)
	defer span.End()

	id, err := t.next.Create(ctx, endpoint, resourceID, ttl)
	if errors.Is(err, ErrConflict) {
		span.SetAttributes(attribute.Bool("lock.conflict", true))
		return id, err
	}
	finish(span, err)
	if err == nil {
		span.SetAttributes(attribute.String("lock.id", id))
	}
	return id, err
}

// Renew implements Service.
func (t *Traced) Renew(ctx context.Context, endpoint, lockID string) error {
	ctx, span := t.start(ctx, OpRenew, endpoint, attribute.String("lock.id", lockID))
	defer span.End()

	err := t.next.Renew(ctx, endpoint, lockID)
	finish(span, err)
	return err
}

// Delete implements Service.
func (t *Traced) Delete(ctx context.Context, endpoint, lockID string) error {
	ctx, span := t.start(ctx, OpDelete, endpoint, attribute.String("lock.id", lockID))
	defer span.End()

	err := t.next.Delete(ctx, endpoint, lockID)
	finish(span, err)
	return err
}

// Exists implements Service.
func (t *Traced) Exists(ctx context.Context, endpoint, resourceID string) (bool, error) {
	ctx, span := t.start(ctx, OpExists, endpoint, attribute.String("lock.resource", resourceID))
	defer span.End()

	ok, err := t.next.Exists(ctx, endpoint, resourceID)
	finish(span, err)
	if err == nil {
		span.SetAttributes(attribute.Bool("lock.exists", ok))
	}
	return ok, err
}

func (t *Traced) start(ctx context.Context, op, endpoint string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("lock.op", op),
		attribute.String("server.address", endpoint),
	)
	return t.tracer.Start(ctx, "LockService."+spanSuffix(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	var se *StatusError
	if errors.As(err, &se) {
		span.SetAttributes(attribute.Int("lock.status_code", se.Code))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func spanSuffix(op string) string {
	switch op {
	case OpCreate:
		return "Create"
	case OpRenew:
		return "Renew"
	case OpDelete:
		return "Delete"
	case OpExists:
		return "Exists"
	default:
		return op
	}
}
