package tool

import "context"

type invocationIDKey struct{}

// ContextWithInvocationID attaches the registry-assigned invocation ID.
func ContextWithInvocationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, invocationIDKey{}, id)
}

// InvocationIDFromContext returns the invocation ID, or "" outside a registry call.
func InvocationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(invocationIDKey{}).(string); ok {
		return id
	}
	return ""
}
