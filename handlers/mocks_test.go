package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/services"
)

// withURLParams attaches chi route parameters to a request
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type MockLoginService struct {
	mock.Mock
}

func (m *MockLoginService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) HasPermission(ctx context.Context, identity *models.Identity, code string) bool {
	return m.Called(ctx, identity, code).Bool(0)
}

func (m *MockResolver) CurrentRole(ctx context.Context, identity *models.Identity) (string, bool) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Bool(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListUsers(ctx context.Context, filter repositories.UserFilter) (*services.UserPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UserPage), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, input services.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id uuid.UUID, input services.UpdateUserInput) (*models.User, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetUserStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id uuid.UUID, actorID string) error {
	return m.Called(ctx, id, actorID).Error(0)
}

type MockRoleService struct {
	mock.Mock
}

func (m *MockRoleService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Role), args.Error(1)
}

func (m *MockRoleService) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockRoleService) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockRoleService) UpdateRole(ctx context.Context, id uuid.UUID, name, description *string) (*models.Role, error) {
	args := m.Called(ctx, id, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockRoleService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRoleService) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RolePermission), args.Error(1)
}

func (m *MockRoleService) GrantRolePermission(ctx context.Context, roleID uuid.UUID, code string, expiresAt *time.Time) error {
	return m.Called(ctx, roleID, code, expiresAt).Error(0)
}

func (m *MockRoleService) RevokeRolePermission(ctx context.Context, roleID uuid.UUID, code string) error {
	return m.Called(ctx, roleID, code).Error(0)
}

func (m *MockRoleService) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, codes []string) ([]*models.RolePermission, error) {
	args := m.Called(ctx, roleID, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RolePermission), args.Error(1)
}

type MockPermissionService struct {
	mock.Mock
}

func (m *MockPermissionService) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Permission), args.Error(1)
}

func (m *MockPermissionService) ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserPermission), args.Error(1)
}

func (m *MockPermissionService) GrantUserPermission(ctx context.Context, userID uuid.UUID, code string, expiresAt *time.Time) error {
	return m.Called(ctx, userID, code, expiresAt).Error(0)
}

func (m *MockPermissionService) RevokeUserPermission(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}
