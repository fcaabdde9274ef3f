// Package contextkeys provides centralized context key definitions.
//
// All context keys shared across packages are defined here to prevent
// typos and make key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains the upstream-verified acting user id (int64).
	// Set by: middleware.Identity
	// Required by: all guarded endpoints
	ActorKey Key = "actor_id"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestID
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"
)

// WithActor adds the acting user id to the context
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ActorKey, userID)
}

// ActorID retrieves the acting user id from the context
func ActorID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ActorKey).(int64)
	return id, ok
}

// WithRequestID adds the request id to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request id from the context
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
