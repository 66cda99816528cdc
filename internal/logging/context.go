package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestCtxKey struct{}
type ownerCtxKey struct{}

// ContextFields extracts correlation fields (trace, request, owner) from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := ctx.Value(requestCtxKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if owner, ok := ctx.Value(ownerCtxKey{}).(string); ok && owner != "" {
		fields = append(fields, zap.String("owner.id", owner))
	}
	return fields
}

// WithRequestID attaches an HTTP request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// WithOwnerID attaches the authenticated owner.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, ownerID)
}

// Fields is ContextFields plus extra, for services holding a plain *zap.Logger.
func Fields(ctx context.Context, extra ...zap.Field) []zap.Field {
	return append(ContextFields(ctx), extra...)
}
