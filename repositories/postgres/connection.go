package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adopts an existing pool, used by tests with sqlmock
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the RBAC tables, the check_user_permission function and
// the built-in roles and permission catalog. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, seedSQL); err != nil {
		return fmt.Errorf("failed to seed roles and permissions: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS roles (
		id UUID PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		role VARCHAR(50),
		role_id UUID REFERENCES roles(id) ON DELETE SET NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		profile_pic_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS permissions (
		id UUID PRIMARY KEY,
		code VARCHAR(100) NOT NULL UNIQUE,
		module VARCHAR(50) NOT NULL,
		action VARCHAR(50) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS role_permissions (
		role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		is_active BOOLEAN NOT NULL DEFAULT true,
		granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (role_id, permission_id)
	);

	CREATE TABLE IF NOT EXISTS user_permissions (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		is_active BOOLEAN NOT NULL DEFAULT true,
		granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (user_id, permission_id)
	);

	CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
	CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(lower(email));
	CREATE INDEX IF NOT EXISTS idx_role_permissions_permission_id ON role_permissions(permission_id);
	CREATE INDEX IF NOT EXISTS idx_user_permissions_permission_id ON user_permissions(permission_id);

	-- A permission holds when an active, unexpired grant exists through the
	-- user's role or as a direct override. Inactive users hold nothing.
	CREATE OR REPLACE FUNCTION check_user_permission(p_user_id UUID, p_permission_code TEXT)
	RETURNS BOOLEAN
	LANGUAGE sql STABLE
	AS $$
		SELECT EXISTS (
			SELECT 1
			FROM users u
			JOIN role_permissions rp ON rp.role_id = u.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE u.id = p_user_id
			  AND u.is_active
			  AND p.code = p_permission_code
			  AND p.is_active
			  AND rp.is_active
			  AND (rp.expires_at IS NULL OR rp.expires_at > now())
		) OR EXISTS (
			SELECT 1
			FROM users u
			JOIN user_permissions up ON up.user_id = u.id
			JOIN permissions p ON p.id = up.permission_id
			WHERE u.id = p_user_id
			  AND u.is_active
			  AND p.code = p_permission_code
			  AND p.is_active
			  AND up.is_active
			  AND (up.expires_at IS NULL OR up.expires_at > now())
		);
	$$;
`

const seedSQL = `
	INSERT INTO roles (id, name, description) VALUES
		(gen_random_uuid(), 'Admin', 'Full administrative access'),
		(gen_random_uuid(), 'QA', 'Quality assurance'),
		(gen_random_uuid(), 'Developer', 'Development team'),
		(gen_random_uuid(), 'User', 'Standard user')
	ON CONFLICT (name) DO NOTHING;

	INSERT INTO permissions (id, code, module, action, description) VALUES
		(gen_random_uuid(), 'users.read', 'users', 'read', 'View users'),
		(gen_random_uuid(), 'users.create', 'users', 'create', 'Create users'),
		(gen_random_uuid(), 'users.update', 'users', 'update', 'Edit users'),
		(gen_random_uuid(), 'users.delete', 'users', 'delete', 'Delete users'),
		(gen_random_uuid(), 'admin.read', 'admin', 'read', 'Read administrative data'),
		(gen_random_uuid(), 'roles.read', 'roles', 'read', 'View roles'),
		(gen_random_uuid(), 'roles.manage', 'roles', 'manage', 'Manage role permissions'),
		(gen_random_uuid(), 'permissions.read', 'permissions', 'read', 'View the permission catalog'),
		(gen_random_uuid(), 'permissions.manage', 'permissions', 'manage', 'Grant permissions to users')
	ON CONFLICT (code) DO NOTHING;

	INSERT INTO role_permissions (role_id, permission_id)
	SELECT r.id, p.id FROM roles r CROSS JOIN permissions p
	WHERE r.name = 'Admin'
	ON CONFLICT (role_id, permission_id) DO NOTHING;
`
