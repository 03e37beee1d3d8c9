package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

var builtInRoles = map[string]bool{
	models.RoleAdmin:     true,
	models.RoleQA:        true,
	models.RoleDeveloper: true,
	models.RoleUser:      true,
}

// RoleService manages roles and the permissions granted to them
type RoleService struct {
	users       repositories.UserRepository
	roles       repositories.RoleRepository
	permissions repositories.PermissionRepository
	txMgr       repositories.TransactionManager
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleService creates a new RoleService
func NewRoleService(repos *repositories.Repositories, txMgr repositories.TransactionManager, logger *zap.Logger) *RoleService {
	return &RoleService{
		users:       repos.Users,
		roles:       repos.Roles,
		permissions: repos.Permissions,
		txMgr:       txMgr,
		logger:      logger,
		now:         time.Now,
	}
}

// ListRoles returns every role
func (s *RoleService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fromRepository(err, nil, nil)
	}
	return roles, nil
}

// GetRole retrieves a role by ID
func (s *RoleService) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, ErrRoleNotFound, nil)
	}
	return role, nil
}

// CreateRole creates a role with no permissions
func (s *RoleService) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewDomainError(ErrorTypeValidation, "role name is required", nil)
	}

	role := models.NewRole(name, strings.TrimSpace(description))
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fromRepository(err, nil, ErrDuplicateRole)
	}

	s.logger.Info("role created", zap.String("role_id", role.ID.String()), zap.String("name", role.Name))
	return role, nil
}

// UpdateRole renames or re-describes a role. Built-in roles keep their names.
func (s *RoleService) UpdateRole(ctx context.Context, id uuid.UUID, name, description *string) (*models.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		newName := strings.TrimSpace(*name)
		if newName == "" {
			return nil, NewDomainError(ErrorTypeValidation, "role name is required", nil)
		}
		if newName != role.Name && builtInRoles[role.Name] {
			return nil, ErrBuiltInRole
		}
		role.Name = newName
	}
	if description != nil {
		role.Description = strings.TrimSpace(*description)
	}
	role.UpdatedAt = s.now()

	// Users carry a copy of the role name; it moves with the role.
	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.roles.Update(ctx, role); err != nil {
			return fromRepository(err, ErrRoleNotFound, ErrDuplicateRole)
		}
		if err := s.users.SetRoleNameForRole(ctx, role.ID, role.Name); err != nil {
			return fromRepository(err, nil, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("role updated", zap.String("role_id", role.ID.String()))
	return role, nil
}

// DeleteRole removes a custom role along with its grants
func (s *RoleService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if builtInRoles[role.Name] {
		return ErrBuiltInRole
	}

	// Clear the copied name while role_id still links the users.
	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.users.SetRoleNameForRole(ctx, id, ""); err != nil {
			return fromRepository(err, nil, nil)
		}
		if err := s.roles.Delete(ctx, id); err != nil {
			return fromRepository(err, ErrRoleNotFound, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("role deleted", zap.String("role_id", id.String()), zap.String("name", role.Name))
	return nil
}

// ListRolePermissions returns the grants of a role
func (s *RoleService) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	grants, err := s.permissions.ListForRole(ctx, roleID)
	if err != nil {
		return nil, fromRepository(err, nil, nil)
	}
	return grants, nil
}

// GrantRolePermission grants code to the role. Re-granting an existing pair
// reactivates it and replaces its expiry; it never adds a second row.
func (s *RoleService) GrantRolePermission(ctx context.Context, roleID uuid.UUID, code string, expiresAt *time.Time) error {
	if err := checkExpiry(expiresAt, s.now()); err != nil {
		return err
	}
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return err
	}
	perm, err := lookupPermission(ctx, s.permissions, code)
	if err != nil {
		return err
	}

	if err := s.permissions.GrantToRole(ctx, roleID, perm.ID, expiresAt); err != nil {
		return fromRepository(err, nil, nil)
	}

	s.logger.Info("role permission granted",
		zap.String("role_id", roleID.String()),
		zap.String("permission", perm.Code))
	return nil
}

// RevokeRolePermission removes the grant of code from the role
func (s *RoleService) RevokeRolePermission(ctx context.Context, roleID uuid.UUID, code string) error {
	perm, err := lookupPermission(ctx, s.permissions, code)
	if err != nil {
		return err
	}
	if err := s.permissions.RevokeFromRole(ctx, roleID, perm.ID); err != nil {
		return fromRepository(err, ErrGrantNotFound, nil)
	}

	s.logger.Info("role permission revoked",
		zap.String("role_id", roleID.String()),
		zap.String("permission", perm.Code))
	return nil
}

// ReplaceRolePermissions makes codes the complete, non-expiring grant set of
// the role. Every code is resolved before anything changes; the swap is
// atomic.
func (s *RoleService) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, codes []string) ([]*models.RolePermission, error) {
	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) ([]*models.RolePermission, error) {
		if _, err := s.GetRole(ctx, roleID); err != nil {
			return nil, err
		}

		perms := make([]*models.Permission, 0, len(codes))
		var unknown []string
		seen := make(map[string]bool, len(codes))
		for _, code := range codes {
			code = strings.TrimSpace(code)
			if seen[code] {
				continue
			}
			seen[code] = true

			perm, err := lookupPermission(ctx, s.permissions, code)
			if err != nil {
				if IsInternalError(err) {
					return nil, err
				}
				unknown = append(unknown, code)
				continue
			}
			perms = append(perms, perm)
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, NewDomainError(ErrorTypeValidation, "unknown permission codes", nil).
				WithDetail("codes", unknown)
		}

		if err := s.permissions.RevokeAllFromRole(ctx, roleID); err != nil {
			return nil, fromRepository(err, nil, nil)
		}
		for _, perm := range perms {
			if err := s.permissions.GrantToRole(ctx, roleID, perm.ID, nil); err != nil {
				return nil, fromRepository(err, nil, nil)
			}
		}

		s.logger.Info("role permissions replaced",
			zap.String("role_id", roleID.String()),
			zap.Int("count", len(perms)))

		grants, err := s.permissions.ListForRole(ctx, roleID)
		if err != nil {
			return nil, fromRepository(err, nil, nil)
		}
		return grants, nil
	})
}

func lookupPermission(ctx context.Context, repo repositories.PermissionRepository, code string) (*models.Permission, error) {
	module, action, err := models.ParsePermissionCode(code)
	if err != nil {
		return nil, NewDomainError(ErrorTypeValidation, ErrInvalidPermissionCode.Message, err).WithDetail("code", code)
	}
	perm, err := repo.GetByCode(ctx, module+"."+action)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewDomainError(ErrorTypeNotFound, ErrPermissionNotFound.Message, err).WithDetail("code", code)
		}
		return nil, fromRepository(err, nil, nil)
	}
	return perm, nil
}

func checkExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return ErrExpiryInPast
	}
	return nil
}
