package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions
type Role struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Role model
func (Role) TableName() string {
	return "roles"
}

// NewRole creates a new Role instance
func NewRole(name, description string) *Role {
	now := time.Now()
	return &Role{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
