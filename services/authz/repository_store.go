package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

// RepositoryStore adapts the Postgres repositories to Store
type RepositoryStore struct {
	users       repositories.UserRepository
	roles       repositories.RoleRepository
	permissions repositories.PermissionRepository
}

// NewRepositoryStore creates a Store backed by the repositories
func NewRepositoryStore(repos *repositories.Repositories) *RepositoryStore {
	return &RepositoryStore{
		users:       repos.Users,
		roles:       repos.Roles,
		permissions: repos.Permissions,
	}
}

// UserByID implements Store
func (s *RepositoryStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	return s.users.GetByID(ctx, uid)
}

// RoleByID implements Store
func (s *RepositoryStore) RoleByID(ctx context.Context, id string) (*models.Role, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id %q: %w", id, err)
	}
	return s.roles.GetByID(ctx, rid)
}

// CheckPermission implements Store
func (s *RepositoryStore) CheckPermission(ctx context.Context, userID, code string) (bool, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return false, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.permissions.CheckUserPermission(ctx, uid, code)
}
