package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/tokens"
)

// passwordCost is the bcrypt work factor for new hashes
var passwordCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", NewDomainError(ErrorTypeValidation, "password must be at most 72 bytes", err)
		}
		return "", WrapInternal("failed to hash password", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyPasswordHash is compared against when no usable hash exists, so an
// unknown email costs the same bcrypt work as a wrong password.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), passwordCost)
	return string(hash)
})

// checkPassword is swapped in tests to observe the comparisons made
var checkPassword = CheckPassword

// TokenIssuer mints signed bearer tokens
type TokenIssuer interface {
	Issue(req tokens.IssueRequest, ttl time.Duration) (string, error)
}

// LoginResult is returned by a successful password login
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *models.User `json:"user"`
}

// AuthService exchanges email and password for a signed token
type AuthService struct {
	users    repositories.UserRepository
	roles    repositories.RoleRepository
	issuer   TokenIssuer
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService. A non-positive ttl defers to the
// issuer's default.
func NewAuthService(repos *repositories.Repositories, issuer TokenIssuer, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    repos.Users,
		roles:    repos.Roles,
		issuer:   issuer,
		tokenTTL: ttl,
		logger:   logger,
	}
}

// Login verifies the credentials and issues a token carrying the user's role
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, NewDomainError(ErrorTypeValidation, "email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			checkPassword(dummyPasswordHash(), password)
			s.logger.Info("login rejected: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, fromRepository(err, nil, nil)
	}

	if !user.HasPassword() {
		checkPassword(dummyPasswordHash(), password)
		s.logger.Info("login rejected: password login disabled", zap.String("user_id", user.ID.String()))
		return nil, ErrPasswordLoginDisabled
	}
	if !checkPassword(user.PasswordHash, password) {
		s.logger.Info("login rejected: password mismatch", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Info("login rejected: user inactive", zap.String("user_id", user.ID.String()))
		return nil, ErrUserInactive
	}

	role := s.roleName(ctx, user)
	token, err := s.issuer.Issue(tokens.IssueRequest{
		SubjectID: user.ID.String(),
		Email:     user.Email,
		Role:      role,
	}, s.tokenTTL)
	if err != nil {
		return nil, WrapInternal("failed to issue token", err)
	}

	ttl := s.tokenTTL
	if ttl <= 0 {
		ttl = tokens.DefaultTTL
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", role))

	user.Role = role
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl / time.Second),
		User:        user,
	}, nil
}

// roleName follows role_id and uses the denormalised name only when role_id
// is unset. A lookup failure yields an empty role; the resolver re-derives
// it later.
func (s *AuthService) roleName(ctx context.Context, user *models.User) string {
	if user.RoleID == nil {
		return user.Role
	}
	role, err := s.roles.GetByID(ctx, *user.RoleID)
	if err != nil {
		s.logger.Warn("failed to resolve role for login",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return ""
	}
	return role.Name
}
