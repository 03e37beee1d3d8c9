package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alchemy-tracker/backend/models"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned (wrapped) when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserFilter narrows a user listing
type UserFilter struct {
	// Search matches email or full name, case-insensitively
	Search string
	Limit  int
	Offset int
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, including the password hash
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users matching the filter and the total match count
	List(ctx context.Context, filter UserFilter) ([]*models.User, int, error)

	// Update updates profile and role fields
	Update(ctx context.Context, user *models.User) error

	// SetActive enables or disables a user
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete deletes a user
	Delete(ctx context.Context, id uuid.UUID) error

	// SetRoleNameForRole rewrites the denormalised role name of every user
	// linked to roleID; an empty name clears it
	SetRoleNameForRole(ctx context.Context, roleID uuid.UUID, name string) error
}

// RoleRepository handles role data operations
type RoleRepository interface {
	List(ctx context.Context) ([]*models.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PermissionRepository handles the permission catalog and its grants
type PermissionRepository interface {
	// List retrieves the permission catalog
	List(ctx context.Context) ([]*models.Permission, error)

	// GetByCode retrieves a permission by its module.action code
	GetByCode(ctx context.Context, code string) (*models.Permission, error)

	// CheckUserPermission evaluates check_user_permission for the user
	CheckUserPermission(ctx context.Context, userID uuid.UUID, code string) (bool, error)

	// ListForRole retrieves the grants of a role, joined with their codes
	ListForRole(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error)

	// GrantToRole inserts or updates in place the single grant row for the pair
	GrantToRole(ctx context.Context, roleID, permissionID uuid.UUID, expiresAt *time.Time) error

	// RevokeFromRole removes a role grant
	RevokeFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error

	// RevokeAllFromRole removes every grant of a role
	RevokeAllFromRole(ctx context.Context, roleID uuid.UUID) error

	// ListForUser retrieves the direct overrides of a user
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error)

	// GrantToUser inserts or updates in place a direct user override
	GrantToUser(ctx context.Context, userID, permissionID uuid.UUID, expiresAt *time.Time) error

	// RevokeFromUser removes a direct user override
	RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users       UserRepository
	Roles       RoleRepository
	Permissions PermissionRepository
}
