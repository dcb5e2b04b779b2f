package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// GenerateTraceID returns a new random request/trace ID.
func GenerateTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores id in ctx. Log records written with ctx carry it as
// trace_id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// GetTraceID returns the trace ID stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
