// Package authz answers role and permission questions about a verified
// identity. Every question goes to the store; nothing is cached between
// calls, and any store failure is answered with "no".
package authz

import (
	"context"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/internal/observability"
	"github.com/alchemy-tracker/backend/models"
)

// Store is the query surface of the data collaborator
type Store interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	RoleByID(ctx context.Context, id string) (*models.Role, error)
	CheckPermission(ctx context.Context, userID, code string) (bool, error)
}

// Resolver is stateless apart from its collaborators and safe for concurrent use
type Resolver struct {
	store   Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewResolver creates a resolver over the given store
func NewResolver(store Store, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// HasPermission reports whether the identity's subject holds code. The
// role-vs-override evaluation belongs to the store.
func (r *Resolver) HasPermission(ctx context.Context, identity *models.Identity, code string) bool {
	if !identity.Authenticated() || code == "" {
		return false
	}

	granted, err := r.store.CheckPermission(ctx, identity.SubjectID, code)
	if err != nil {
		r.metrics.RecordResolverError("check_permission")
		r.logger.Warn("permission check failed, denying",
			zap.String("subject_id", identity.SubjectID),
			zap.String("permission", code),
			zap.Error(err))
		return false
	}
	return granted
}

// HasRole compares the resolved role name to role exactly
func (r *Resolver) HasRole(ctx context.Context, identity *models.Identity, role string) bool {
	current, ok := r.CurrentRole(ctx, identity)
	return ok && current == role
}

// CurrentRole resolves the identity's role name: the role carried by the
// identity, then the name of the role the user's role_id points to. The
// user record's role name is consulted only when role_id is unset.
func (r *Resolver) CurrentRole(ctx context.Context, identity *models.Identity) (string, bool) {
	if !identity.Authenticated() {
		return "", false
	}
	if identity.Role != "" {
		return identity.Role, true
	}

	user, err := r.store.UserByID(ctx, identity.SubjectID)
	if err != nil {
		r.metrics.RecordResolverError("user_by_id")
		r.logger.Warn("user lookup failed while resolving role",
			zap.String("subject_id", identity.SubjectID),
			zap.Error(err))
		return "", false
	}
	if user.RoleID == nil {
		return user.Role, user.Role != ""
	}

	// role_id is authoritative; a failed lookup never falls back to the
	// denormalised name.
	role, err := r.store.RoleByID(ctx, user.RoleID.String())
	if err != nil {
		r.metrics.RecordResolverError("role_by_id")
		r.logger.Warn("role lookup failed while resolving role",
			zap.String("subject_id", identity.SubjectID),
			zap.String("role_id", user.RoleID.String()),
			zap.Error(err))
		return "", false
	}
	if role.Name == "" {
		return "", false
	}
	return role.Name, true
}
