package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

const userColumns = `id, email, full_name, password, role, role_id, is_active, profile_pic_url, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role sql.NullString
	var roleID uuid.NullUUID

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&role,
		&roleID,
		&user.IsActive,
		&user.ProfilePicURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = role.String
	if roleID.Valid {
		id := roleID.UUID
		user.RoleID = &id
	}
	return user, nil
}

func nullableRole(name string) sql.NullString {
	return sql.NullString{String: name, Valid: name != ""}
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		nullableRole(user.Role),
		nullableUUID(user.RoleID),
		user.IsActive,
		user.ProfilePicURL,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with email %s", repositories.ErrDuplicate, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", repositories.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user with email %s", repositories.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// List retrieves a page of users, newest first, with the total match count
func (r *UserRepository) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []interface{}{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = ` WHERE email ILIKE $1 OR full_name ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	executor := GetExecutor(ctx, r.db)

	var total int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := executor.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, total, nil
}

// Update updates a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
		    full_name = $3,
		    role = $4,
		    role_id = $5,
		    profile_pic_url = $6,
		    password = $7,
		    updated_at = $8
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		nullableRole(user.Role),
		nullableUUID(user.RoleID),
		user.ProfilePicURL,
		user.PasswordHash,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with email %s", repositories.ErrDuplicate, user.Email)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := expectOneRow(result, "user", user.ID); err != nil {
		return err
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()))
	return nil
}

// SetActive enables or disables a user
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	if err := expectOneRow(result, "user", id); err != nil {
		return err
	}

	r.logger.Debug("user status changed", zap.String("id", id.String()), zap.Bool("active", active))
	return nil
}

// SetRoleNameForRole keeps users.role in step with a renamed or removed role
func (r *UserRepository) SetRoleNameForRole(ctx context.Context, roleID uuid.UUID, name string) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE role_id = $1`,
		roleID, nullableRole(name), time.Now())
	if err != nil {
		return fmt.Errorf("failed to sync role name: %w", err)
	}

	affected, _ := result.RowsAffected()
	r.logger.Debug("role name synced to users",
		zap.String("role_id", roleID.String()),
		zap.Int64("users", affected))
	return nil
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := expectOneRow(result, "user", id); err != nil {
		return err
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}

func expectOneRow(result sql.Result, entity string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", repositories.ErrNotFound, entity, id)
	}
	return nil
}
