package audit

import "context"

type traceCtxKey struct{}

// WithTraceID stores the request trace id so audit entries written deeper
// in the call stack can be correlated with the HTTP log line.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, id)
}

// TraceIDFrom returns the trace ID stored in ctx, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceCtxKey{}).(string)
	return id
}
