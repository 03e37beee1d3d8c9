package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

// PermissionService exposes the permission catalog and direct user overrides
type PermissionService struct {
	users       repositories.UserRepository
	permissions repositories.PermissionRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewPermissionService creates a new PermissionService
func NewPermissionService(repos *repositories.Repositories, logger *zap.Logger) *PermissionService {
	return &PermissionService{
		users:       repos.Users,
		permissions: repos.Permissions,
		logger:      logger,
		now:         time.Now,
	}
}

// ListPermissions returns the catalog
func (s *PermissionService) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return nil, fromRepository(err, nil, nil)
	}
	return perms, nil
}

// ListUserPermissions returns the direct overrides of a user
func (s *PermissionService) ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromRepository(err, ErrUserNotFound, nil)
	}
	grants, err := s.permissions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fromRepository(err, nil, nil)
	}
	return grants, nil
}

// GrantUserPermission grants code directly to a user, independent of role
func (s *PermissionService) GrantUserPermission(ctx context.Context, userID uuid.UUID, code string, expiresAt *time.Time) error {
	if err := checkExpiry(expiresAt, s.now()); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return fromRepository(err, ErrUserNotFound, nil)
	}
	perm, err := lookupPermission(ctx, s.permissions, code)
	if err != nil {
		return err
	}

	if err := s.permissions.GrantToUser(ctx, userID, perm.ID, expiresAt); err != nil {
		return fromRepository(err, nil, nil)
	}

	s.logger.Info("user permission granted",
		zap.String("user_id", userID.String()),
		zap.String("permission", perm.Code))
	return nil
}

// RevokeUserPermission removes a direct override
func (s *PermissionService) RevokeUserPermission(ctx context.Context, userID uuid.UUID, code string) error {
	perm, err := lookupPermission(ctx, s.permissions, code)
	if err != nil {
		return err
	}
	if err := s.permissions.RevokeFromUser(ctx, userID, perm.ID); err != nil {
		return fromRepository(err, ErrGrantNotFound, nil)
	}

	s.logger.Info("user permission revoked",
		zap.String("user_id", userID.String()),
		zap.String("permission", perm.Code))
	return nil
}
