package models

import (
	"time"

	"github.com/google/uuid"
)

// Built-in role names seeded with the schema
const (
	RoleAdmin     = "Admin"
	RoleQA        = "QA"
	RoleDeveloper = "Developer"
	RoleUser      = "User"
)

// User represents an application user. Users created through the managed
// auth service share their id with the auth record.
type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	FullName      string     `json:"full_name" db:"full_name"`
	PasswordHash  string     `json:"-" db:"password"`
	Role          string     `json:"role,omitempty" db:"role"` // legacy denormalised role name
	RoleID        *uuid.UUID `json:"role_id,omitempty" db:"role_id"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	ProfilePicURL string     `json:"profile_pic_url,omitempty" db:"profile_pic_url"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new active User instance
func NewUser(email, fullName string, roleID *uuid.UUID, roleName string) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  fullName,
		Role:      roleName,
		RoleID:    roleID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPassword reports whether the user can log in with email and password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
