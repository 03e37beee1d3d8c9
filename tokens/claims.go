package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a locally signed token
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	// UserID is read for tokens minted before the subject moved to "sub".
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the principal id, preferring the registered subject
func (c *Claims) SubjectID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// IssuedAtTime returns iat or the zero time
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp or the zero time
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Map flattens the claims for diagnostics
func (c *Claims) Map() map[string]interface{} {
	m := map[string]interface{}{
		"sub": c.SubjectID(),
	}
	if c.Email != "" {
		m["email"] = c.Email
	}
	if c.Role != "" {
		m["role"] = c.Role
	}
	if c.IssuedAt != nil {
		m["iat"] = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		m["exp"] = c.ExpiresAt.Unix()
	}
	return m
}
