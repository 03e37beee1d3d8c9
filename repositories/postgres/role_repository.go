package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

const roleColumns = `id, name, description, created_at, updated_at`

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

func scanRole(row rowScanner) (*models.Role, error) {
	role := &models.Role{}
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	return role, nil
}

// List retrieves all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}
	return roles, nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := scanRole(GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: role %s", repositories.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by its exact name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role, err := scanRole(GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: role %q", repositories.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// Create creates a new role
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO roles (`+roleColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: role %q", repositories.ErrDuplicate, role.Name)
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	r.logger.Debug("role created", zap.String("id", role.ID.String()), zap.String("name", role.Name))
	return nil
}

// Update updates a role's name and description
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		role.ID, role.Name, role.Description, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: role %q", repositories.ErrDuplicate, role.Name)
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	return expectOneRow(result, "role", role.ID)
}

// Delete deletes a role. Linked users lose the role_id link; clearing their
// copied role name is the caller's job.
func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if err := expectOneRow(result, "role", id); err != nil {
		return err
	}

	r.logger.Debug("role deleted", zap.String("id", id.String()))
	return nil
}
