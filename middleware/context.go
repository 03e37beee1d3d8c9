package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alchemy-tracker/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the verified identity
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID from context, falling
// back to the id assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetIdentityFromContext retrieves the verified identity, or nil
func GetIdentityFromContext(ctx context.Context) *models.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*models.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds the verified identity to the context
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
