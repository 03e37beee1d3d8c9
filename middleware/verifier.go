package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/internal/observability"
	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/tokens"
)

var (
	// ErrMissingCredential is returned when there is no usable bearer header
	ErrMissingCredential = errors.New("missing or malformed authorization header")

	// ErrInvalidOrExpiredCredential is returned when no credential path accepts the token
	ErrInvalidOrExpiredCredential = errors.New("invalid or expired credential")

	// ErrUnauthenticated is returned when an identity carries no subject
	ErrUnauthenticated = errors.New("unauthenticated")
)

// SessionLookup resolves managed-auth session tokens
type SessionLookup interface {
	LookupSession(ctx context.Context, token string) (*models.Identity, error)
}

// TokenValidator validates locally signed tokens
type TokenValidator interface {
	Validate(token string) (*tokens.Claims, error)
}

// Verifier turns an Authorization header value into an Identity
type Verifier interface {
	Verify(ctx context.Context, authorization string) (*models.Identity, error)
}

// CredentialVerifier tries the managed-auth session first and the local
// signed token second. It keeps no per-request state.
type CredentialVerifier struct {
	sessions SessionLookup
	tokens   TokenValidator
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCredentialVerifier creates a verifier. sessions may be nil when no
// managed-auth service is configured.
func NewCredentialVerifier(sessions SessionLookup, validator TokenValidator, logger *zap.Logger, metrics *observability.Metrics) *CredentialVerifier {
	return &CredentialVerifier{
		sessions: sessions,
		tokens:   validator,
		metrics:  metrics,
		logger:   logger,
	}
}

// Verify authenticates the bearer credential in authorization
func (v *CredentialVerifier) Verify(ctx context.Context, authorization string) (*models.Identity, error) {
	token, ok := ParseBearer(authorization)
	if !ok {
		v.metrics.RecordVerification("", "missing")
		return nil, ErrMissingCredential
	}

	if v.sessions != nil {
		identity, err := v.sessions.LookupSession(ctx, token)
		if ctxErr := ctx.Err(); ctxErr != nil {
			v.metrics.RecordVerification("", "cancelled")
			v.logger.Debug("request cancelled during session lookup",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			return nil, ctxErr
		}
		if err == nil && identity.Authenticated() {
			identity.Origin = models.OriginSessionToken
			v.metrics.RecordVerification(string(models.OriginSessionToken), "success")
			return identity, nil
		}
		v.logger.Debug("session lookup did not accept token, trying signed token",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.Error(err))
	}

	claims, err := v.tokens.Validate(token)
	if err != nil {
		switch {
		case errors.Is(err, tokens.ErrExpired):
			v.logger.Info("signed token expired",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
		default:
			v.logger.Info("signed token rejected",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
		}
		v.metrics.RecordVerification("", "invalid")
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredCredential, err)
	}
	if err := ctx.Err(); err != nil {
		v.metrics.RecordVerification("", "cancelled")
		return nil, err
	}

	v.metrics.RecordVerification(string(models.OriginSignedToken), "success")
	return &models.Identity{
		SubjectID: claims.SubjectID(),
		Email:     claims.Email,
		Role:      claims.Role,
		Origin:    models.OriginSignedToken,
		RawClaims: claims.Map(),
	}, nil
}

// ParseBearer extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively and the token must be non-empty.
func ParseBearer(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
