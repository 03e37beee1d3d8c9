package supabase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

// Store answers the permission resolver's queries through PostgREST
type Store struct {
	client *Client
}

// NewStore creates a Store over the client
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// UserByID reads the user's role columns
func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	res := s.client.Select(ctx, "users", "id,email,full_name,role,role_id,is_active",
		map[string]string{"id": id})
	if !res.OK() {
		return nil, fmt.Errorf("user lookup failed: %s", res.Err)
	}
	row, ok := res.First()
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repositories.ErrNotFound, id)
	}

	userID, err := uuid.Parse(stringField(row, "id"))
	if err != nil {
		return nil, fmt.Errorf("user row has invalid id: %w", err)
	}
	user := &models.User{
		ID:       userID,
		Email:    stringField(row, "email"),
		FullName: stringField(row, "full_name"),
		Role:     stringField(row, "role"),
		IsActive: boolField(row, "is_active"),
	}
	if raw := stringField(row, "role_id"); raw != "" {
		roleID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("user row has invalid role_id: %w", err)
		}
		user.RoleID = &roleID
	}
	return user, nil
}

// RoleByID reads a role record
func (s *Store) RoleByID(ctx context.Context, id string) (*models.Role, error) {
	res := s.client.Select(ctx, "roles", "id,name,description",
		map[string]string{"id": id})
	if !res.OK() {
		return nil, fmt.Errorf("role lookup failed: %s", res.Err)
	}
	row, ok := res.First()
	if !ok {
		return nil, fmt.Errorf("%w: role %s", repositories.ErrNotFound, id)
	}

	roleID, err := uuid.Parse(stringField(row, "id"))
	if err != nil {
		return nil, fmt.Errorf("role row has invalid id: %w", err)
	}
	return &models.Role{
		ID:          roleID,
		Name:        stringField(row, "name"),
		Description: stringField(row, "description"),
	}, nil
}

// CheckPermission calls the check_user_permission function. The function
// result arrives either as a bare boolean or as a row keyed by its name.
func (s *Store) CheckPermission(ctx context.Context, userID, code string) (bool, error) {
	res := s.client.RPC(ctx, "check_user_permission", map[string]interface{}{
		"p_user_id":         userID,
		"p_permission_code": code,
	})
	if !res.OK() {
		return false, fmt.Errorf("permission check failed: %s", res.Err)
	}
	row, ok := res.First()
	if !ok {
		return false, nil
	}
	return boolField(row, "check_user_permission", scalarKey), nil
}
