package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

const permissionColumns = `id, code, module, action, description, is_active, created_at`

// PermissionRepository implements the repositories.PermissionRepository interface
type PermissionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB, logger *zap.Logger) repositories.PermissionRepository {
	return &PermissionRepository{db: db, logger: logger}
}

func scanPermission(row rowScanner) (*models.Permission, error) {
	p := &models.Permission{}
	if err := row.Scan(&p.ID, &p.Code, &p.Module, &p.Action, &p.Description, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves the permission catalog ordered by code
func (r *PermissionRepository) List(ctx context.Context) ([]*models.Permission, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions ORDER BY module, action`)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]*models.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission rows: %w", err)
	}
	return perms, nil
}

// GetByCode retrieves a permission by code
func (r *PermissionRepository) GetByCode(ctx context.Context, code string) (*models.Permission, error) {
	p, err := scanPermission(GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: permission %q", repositories.ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return p, nil
}

// CheckUserPermission evaluates the check_user_permission stored function.
// Grant and expiry rules live in the database, not here.
func (r *PermissionRepository) CheckUserPermission(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	var granted sql.NullBool
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT check_user_permission($1, $2)`, userID, code).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return granted.Valid && granted.Bool, nil
}

// ListForRole retrieves the grants of a role with their permission codes
func (r *PermissionRepository) ListForRole(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error) {
	query := `
		SELECT rp.role_id, rp.permission_id, p.code, rp.is_active, rp.granted_at, rp.expires_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.code
	`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	grants := make([]*models.RolePermission, 0)
	for rows.Next() {
		g := &models.RolePermission{}
		var expiresAt sql.NullTime
		if err := rows.Scan(&g.RoleID, &g.PermissionID, &g.Code, &g.IsActive, &g.GrantedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			g.ExpiresAt = &t
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role permission rows: %w", err)
	}
	return grants, nil
}

// GrantToRole keeps exactly one row per (role, permission): a repeated grant
// reactivates and updates the existing row instead of inserting another.
func (r *PermissionRepository) GrantToRole(ctx context.Context, roleID, permissionID uuid.UUID, expiresAt *time.Time) error {
	query := `
		INSERT INTO role_permissions (role_id, permission_id, is_active, granted_at, expires_at)
		VALUES ($1, $2, true, $3, $4)
		ON CONFLICT (role_id, permission_id)
		DO UPDATE SET is_active = true, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, roleID, permissionID, time.Now(), nullableTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to grant role permission: %w", err)
	}

	r.logger.Debug("role permission granted",
		zap.String("role_id", roleID.String()),
		zap.String("permission_id", permissionID.String()))
	return nil
}

// RevokeFromRole removes a role grant
func (r *PermissionRepository) RevokeFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke role permission: %w", err)
	}
	return expectOneRow(result, "role permission", permissionID)
}

// RevokeAllFromRole removes every grant of a role
func (r *PermissionRepository) RevokeAllFromRole(ctx context.Context, roleID uuid.UUID) error {
	if _, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	return nil
}

// ListForUser retrieves the direct overrides of a user
func (r *PermissionRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error) {
	query := `
		SELECT up.user_id, up.permission_id, p.code, up.is_active, up.granted_at, up.expires_at
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.code
	`
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user permissions: %w", err)
	}
	defer rows.Close()

	grants := make([]*models.UserPermission, 0)
	for rows.Next() {
		g := &models.UserPermission{}
		var expiresAt sql.NullTime
		if err := rows.Scan(&g.UserID, &g.PermissionID, &g.Code, &g.IsActive, &g.GrantedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan user permission: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			g.ExpiresAt = &t
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user permission rows: %w", err)
	}
	return grants, nil
}

// GrantToUser inserts or refreshes a direct user override
func (r *PermissionRepository) GrantToUser(ctx context.Context, userID, permissionID uuid.UUID, expiresAt *time.Time) error {
	query := `
		INSERT INTO user_permissions (user_id, permission_id, is_active, granted_at, expires_at)
		VALUES ($1, $2, true, $3, $4)
		ON CONFLICT (user_id, permission_id)
		DO UPDATE SET is_active = true, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at
	`
	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, userID, permissionID, time.Now(), nullableTime(expiresAt))
	if err != nil {
		return fmt.Errorf("failed to grant user permission: %w", err)
	}

	r.logger.Debug("user permission granted",
		zap.String("user_id", userID.String()),
		zap.String("permission_id", permissionID.String()))
	return nil
}

// RevokeFromUser removes a direct user override
func (r *PermissionRepository) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke user permission: %w", err)
	}
	return expectOneRow(result, "user permission", permissionID)
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
