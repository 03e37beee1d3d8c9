package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/tokens"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.User), args.Int(1), args.Error(2)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) SetRoleNameForRole(ctx context.Context, roleID uuid.UUID, name string) error {
	return m.Called(ctx, roleID, name).Error(0)
}

// MockRoleRepository is a mock implementation of RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Role), args.Error(1)
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) Update(ctx context.Context, role *models.Role) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockPermissionRepository is a mock implementation of PermissionRepository
type MockPermissionRepository struct {
	mock.Mock
}

func (m *MockPermissionRepository) List(ctx context.Context) ([]*models.Permission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Permission), args.Error(1)
}

func (m *MockPermissionRepository) GetByCode(ctx context.Context, code string) (*models.Permission, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Permission), args.Error(1)
}

func (m *MockPermissionRepository) CheckUserPermission(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockPermissionRepository) ListForRole(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RolePermission), args.Error(1)
}

func (m *MockPermissionRepository) GrantToRole(ctx context.Context, roleID, permissionID uuid.UUID, expiresAt *time.Time) error {
	return m.Called(ctx, roleID, permissionID, expiresAt).Error(0)
}

func (m *MockPermissionRepository) RevokeFromRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	return m.Called(ctx, roleID, permissionID).Error(0)
}

func (m *MockPermissionRepository) RevokeAllFromRole(ctx context.Context, roleID uuid.UUID) error {
	return m.Called(ctx, roleID).Error(0)
}

func (m *MockPermissionRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserPermission), args.Error(1)
}

func (m *MockPermissionRepository) GrantToUser(ctx context.Context, userID, permissionID uuid.UUID, expiresAt *time.Time) error {
	return m.Called(ctx, userID, permissionID, expiresAt).Error(0)
}

func (m *MockPermissionRepository) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	return m.Called(ctx, userID, permissionID).Error(0)
}

// MockTokenIssuer is a mock implementation of TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(req tokens.IssueRequest, ttl time.Duration) (string, error) {
	args := m.Called(req, ttl)
	return args.String(0), args.Error(1)
}

// fakeTx records how a transaction ended
type fakeTx struct {
	ctx        context.Context
	committed  bool
	rolledback bool
}

func (t *fakeTx) Commit() error            { t.committed = true; return nil }
func (t *fakeTx) Rollback() error          { t.rolledback = true; return nil }
func (t *fakeTx) Context() context.Context { return t.ctx }

type txKey struct{}

// fakeTxManager runs fn inline and commits or rolls back the way the
// Postgres manager does
type fakeTxManager struct {
	last  *fakeTx
	count int
}

func (m *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	m.count++
	m.last = &fakeTx{ctx: ctx}
	return m.last, nil
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := m.Begin(ctx)
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

var (
	bg         = context.Background()
	testLogger = zap.NewNop()
	anyCtx     = mock.Anything
)

// inTx matches contexts that carry the fake transaction
var inTx = mock.MatchedBy(func(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
})

type servicesFixture struct {
	users *MockUserRepository
	roles *MockRoleRepository
	perms *MockPermissionRepository
	txMgr *fakeTxManager
	repos *repositories.Repositories
}

func newServicesFixture() *servicesFixture {
	f := &servicesFixture{
		users: new(MockUserRepository),
		roles: new(MockRoleRepository),
		perms: new(MockPermissionRepository),
		txMgr: &fakeTxManager{},
	}
	f.repos = &repositories.Repositories{Users: f.users, Roles: f.roles, Permissions: f.perms}
	return f
}
