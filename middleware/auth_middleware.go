package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/utils"
)

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier Verifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(verifier Verifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a verified bearer credential.
// The resulting Identity is placed in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity, err := m.verifier.Verify(ctx, r.Header.Get("Authorization"))
		if err != nil {
			logVerifyFailure(m.logger, err, zap.String("request_id", requestID))
			writeAuthError(w, err)
			return
		}
		if !identity.Authenticated() {
			m.logger.Warn("verified identity has no subject",
				zap.String("request_id", requestID))
			writeAuthError(w, ErrUnauthenticated)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("subject_id", identity.SubjectID),
			zap.String("origin", string(identity.Origin)))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// logVerifyFailure keeps a client that went away out of the credential
// failure log.
func logVerifyFailure(logger *zap.Logger, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("request cancelled during verification", fields...)
		return
	}
	logger.Warn("authentication failed", fields...)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingCredential):
		_ = utils.WriteUnauthorized(w, "Invalid authorization header")
	case errors.Is(err, ErrUnauthenticated):
		_ = utils.WriteUnauthorized(w, "User ID not found")
	default:
		_ = utils.WriteUnauthorized(w, "Invalid or expired token")
	}
}
