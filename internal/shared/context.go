package shared

import "context"

// Caller carries the authenticated caller identity supplied by the gateway.
// Role hierarchy enforcement happens upstream; the engine only scopes queries
// by owner.
type Caller struct {
	OwnerID string
	Role    string
}

type callerContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
