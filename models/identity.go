package models

// Origin identifies which credential path produced an Identity
type Origin string

const (
	OriginSessionToken Origin = "session-token"
	OriginSignedToken  Origin = "signed-token"
)

// Identity is the per-request result of a successful verification.
// It is never persisted.
type Identity struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Origin    Origin `json:"origin"`
	// RawClaims is for diagnostics only and takes no part in authorization.
	RawClaims map[string]interface{} `json:"-"`
}

// Authenticated reports whether the identity names a principal
func (i *Identity) Authenticated() bool {
	return i != nil && i.SubjectID != ""
}
