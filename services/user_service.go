package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/utils"
)

// CreateUserInput carries the fields of a new user. Role is a role name and
// defaults to User.
type CreateUserInput struct {
	Email    string
	FullName string
	Password string
	Role     string
	IsActive *bool
}

// UpdateUserInput carries a partial update; nil fields are left unchanged
type UpdateUserInput struct {
	Email         *string
	FullName      *string
	Password      *string
	Role          *string
	ProfilePicURL *string
}

// UserPage is one page of a user listing
type UserPage struct {
	Users  []*models.User `json:"users"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// UserService manages user records
type UserService struct {
	users  repositories.UserRepository
	roles  repositories.RoleRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(repos *repositories.Repositories, txMgr repositories.TransactionManager, logger *zap.Logger) *UserService {
	return &UserService{
		users:  repos.Users,
		roles:  repos.Roles,
		txMgr:  txMgr,
		logger: logger,
	}
}

// ListUsers returns a page of users matching the filter
func (s *UserService) ListUsers(ctx context.Context, filter repositories.UserFilter) (*UserPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fromRepository(err, nil, nil)
	}
	return &UserPage{Users: users, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, ErrUserNotFound, nil)
	}
	return user, nil
}

// CreateUser validates, hashes the password when one is given and stores
// the user together with its resolved role
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return nil, NewDomainError(ErrorTypeValidation, ErrInvalidEmail.Message, err)
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName, _, _ = strings.Cut(email, "@")
	}

	roleName := strings.TrimSpace(input.Role)
	if roleName == "" {
		roleName = models.RoleUser
	}

	var hash string
	if input.Password != "" {
		var err error
		if hash, err = HashPassword(input.Password); err != nil {
			return nil, err
		}
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.User, error) {
		role, err := s.lookupRole(ctx, roleName)
		if err != nil {
			return nil, err
		}

		user := models.NewUser(email, fullName, &role.ID, role.Name)
		user.PasswordHash = hash
		if input.IsActive != nil {
			user.IsActive = *input.IsActive
		}

		if err := s.users.Create(ctx, user); err != nil {
			return nil, fromRepository(err, nil, ErrDuplicateEmail)
		}

		s.logger.Info("user created",
			zap.String("user_id", user.ID.String()),
			zap.String("role", role.Name))
		return user, nil
	})
}

// UpdateUser applies a partial update
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	var hash string
	if input.Password != nil && *input.Password != "" {
		var err error
		if hash, err = HashPassword(*input.Password); err != nil {
			return nil, err
		}
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.User, error) {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fromRepository(err, ErrUserNotFound, nil)
		}

		if input.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			if err := utils.ValidateEmail(email); err != nil {
				return nil, NewDomainError(ErrorTypeValidation, ErrInvalidEmail.Message, err)
			}
			user.Email = email
		}
		if input.FullName != nil {
			user.FullName = strings.TrimSpace(*input.FullName)
		}
		if input.ProfilePicURL != nil {
			user.ProfilePicURL = *input.ProfilePicURL
		}
		if input.Role != nil {
			role, err := s.lookupRole(ctx, strings.TrimSpace(*input.Role))
			if err != nil {
				return nil, err
			}
			user.Role = role.Name
			user.RoleID = &role.ID
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		user.UpdatedAt = time.Now()

		if err := s.users.Update(ctx, user); err != nil {
			return nil, fromRepository(err, ErrUserNotFound, ErrDuplicateEmail)
		}

		s.logger.Info("user updated", zap.String("user_id", user.ID.String()))
		return user, nil
	})
}

// SetUserStatus activates or deactivates a user. Deactivated users keep
// their grants but hold no effective permissions.
func (s *UserService) SetUserStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, fromRepository(err, ErrUserNotFound, nil)
	}

	s.logger.Info("user status changed",
		zap.String("user_id", id.String()),
		zap.Bool("is_active", active))

	return s.GetUser(ctx, id)
}

// DeleteUser removes a user. Callers may not delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID, actorID string) error {
	if actorID == id.String() {
		return NewDomainError(ErrorTypeConflict, "users cannot delete their own account", nil)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fromRepository(err, ErrUserNotFound, nil)
	}

	s.logger.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.String("actor_id", actorID))
	return nil
}

func (s *UserService) lookupRole(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewDomainError(ErrorTypeValidation, ErrUnknownRole.Message, err).WithDetail("role", name)
		}
		return nil, fromRepository(err, nil, nil)
	}
	return role, nil
}
