package flight

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/hugr-lab/restport/auth"
)

type contextKey int

const metaKey contextKey = iota

// Metadata headers read from incoming calls.
const (
	HeaderAuthorization = "authorization"
	HeaderTraceID       = "airport-trace-id"
	HeaderSessionID     = "airport-client-session-id"
)

// ContextMeta holds request headers relevant to logging and auth.
type ContextMeta struct {
	Authorization string
	TraceID       string
	SessionID     string
}

// WithContextMeta stores meta in ctx.
func WithContextMeta(ctx context.Context, meta ContextMeta) context.Context {
	return context.WithValue(ctx, metaKey, &meta)
}

// MetaFromContext returns the stored metadata or nil.
func MetaFromContext(ctx context.Context) *ContextMeta {
	meta, _ := ctx.Value(metaKey).(*ContextMeta)
	return meta
}

// TraceIDFromContext returns the trace ID from ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.TraceID
	}
	return ""
}

// SessionIDFromContext returns the client session ID from ctx, or "".
func SessionIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.SessionID
	}
	return ""
}

// EnrichContextMetadata copies the known gRPC metadata headers into ctx.
// An already enriched context is returned unchanged.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if MetaFromContext(ctx) != nil {
		return ctx
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	first := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
		return ""
	}
	return WithContextMeta(ctx, ContextMeta{
		Authorization: first(HeaderAuthorization),
		TraceID:       first(HeaderTraceID),
		SessionID:     first(HeaderSessionID),
	})
}

// logAttrs returns the identity, trace and session attributes of ctx for
// logging.
func logAttrs(ctx context.Context) []any {
	var attrs []any
	if identity := auth.IdentityFromContext(ctx); identity != "" {
		attrs = append(attrs, "identity", identity)
	}
	if id := TraceIDFromContext(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		attrs = append(attrs, "session_id", id)
	}
	return attrs
}
