package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Permission is a single capability identified by a dotted module.action code
type Permission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Module      string    `json:"module" db:"module"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Permission model
func (Permission) TableName() string {
	return "permissions"
}

// ParsePermissionCode splits "module.action". Both parts must be non-empty.
func ParsePermissionCode(code string) (module, action string, err error) {
	module, action, ok := strings.Cut(strings.TrimSpace(code), ".")
	if !ok || module == "" || action == "" || strings.Contains(action, ".") {
		return "", "", fmt.Errorf("invalid permission code %q: expected <module>.<action>", code)
	}
	return module, action, nil
}

// NewPermission creates an active Permission from its code
func NewPermission(code, description string) (*Permission, error) {
	module, action, err := ParsePermissionCode(code)
	if err != nil {
		return nil, err
	}
	return &Permission{
		ID:          uuid.New(),
		Code:        module + "." + action,
		Module:      module,
		Action:      action,
		Description: description,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}, nil
}

// RolePermission grants a permission to a role
type RolePermission struct {
	RoleID       uuid.UUID  `json:"role_id" db:"role_id"`
	PermissionID uuid.UUID  `json:"permission_id" db:"permission_id"`
	Code         string     `json:"code,omitempty" db:"code"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	GrantedAt    time.Time  `json:"granted_at" db:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// TableName returns the table name for the RolePermission model
func (RolePermission) TableName() string {
	return "role_permissions"
}

// Effective reports whether the grant is active and unexpired at now
func (g RolePermission) Effective(now time.Time) bool {
	return grantEffective(g.IsActive, g.ExpiresAt, now)
}

// UserPermission is a direct per-user override, independent of the user's role
type UserPermission struct {
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	PermissionID uuid.UUID  `json:"permission_id" db:"permission_id"`
	Code         string     `json:"code,omitempty" db:"code"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	GrantedAt    time.Time  `json:"granted_at" db:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// TableName returns the table name for the UserPermission model
func (UserPermission) TableName() string {
	return "user_permissions"
}

// Effective reports whether the override is active and unexpired at now
func (g UserPermission) Effective(now time.Time) bool {
	return grantEffective(g.IsActive, g.ExpiresAt, now)
}

func grantEffective(active bool, expiresAt *time.Time, now time.Time) bool {
	if !active {
		return false
	}
	return expiresAt == nil || now.Before(*expiresAt)
}
