// Package ctxkey defines shared context key types used across multiple
// packages. It must not depend on other internal packages, to avoid import
// cycles.
package ctxkey

import "context"

// requestIDKey is the context key type for the request correlation ID.
// Callers set it per resolution; audit records emitted along the way reuse
// it so one request can be traced across record types.
type requestIDKey struct{}

// WithRequestID returns a context carrying the given correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID from the context, if set.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
