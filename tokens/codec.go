// Package tokens issues and validates the locally signed bearer tokens handed
// out by the login endpoint.
package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alchemy-tracker/backend/config"
)

var (
	// ErrExpired is returned when a correctly signed token is past its expiry
	ErrExpired = errors.New("token expired")

	// ErrMalformed is returned when the signature does not verify or the
	// token cannot be parsed
	ErrMalformed = errors.New("malformed token")
)

// DefaultTTL is used when neither the caller nor the configuration sets one.
const DefaultTTL = 24 * time.Hour

// IssueRequest carries the identity fields embedded in a new token
type IssueRequest struct {
	SubjectID string
	Email     string
	Role      string
}

// Codec signs and verifies tokens with the process-wide shared secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
}

// Option customises a Codec
type Option func(*Codec)

// WithClock overrides the wall clock used for issuance and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec builds a Codec from the auth configuration. An empty secret or an
// algorithm outside the HMAC family is rejected.
func NewCodec(cfg config.AuthConfig, opts ...Option) (*Codec, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is required")
	}

	alg := strings.ToUpper(cfg.TokenAlgorithm)
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.TokenAlgorithm)
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Codec{
		secret:     []byte(cfg.TokenSecret),
		method:     method,
		defaultTTL: ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm returns the JWS algorithm identifier in use
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs a token for the given identity. A non-positive ttl selects the
// configured default. The expiry is absolute, fixed at issuance.
func (c *Codec) Issue(req IssueRequest, ttl time.Duration) (string, error) {
	if req.SubjectID == "" {
		return "", errors.New("subject id is required")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	// NumericDate has second precision; align iat so exp == iat + ttl exactly.
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Email: req.Email,
		Role:  req.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.SubjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry of a token. Untrusted input
// never panics; the outcome is either claims, ErrExpired or ErrMalformed.
func (c *Codec) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !token.Valid {
		return nil, ErrMalformed
	}

	if claims.SubjectID() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	return claims, nil
}
