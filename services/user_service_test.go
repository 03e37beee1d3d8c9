package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

func TestListUsers(t *testing.T) {
	f := newServicesFixture()
	svc := NewUserService(f.repos, f.txMgr, testLogger)

	users := []*models.User{models.NewUser("a@example.com", "A", nil, "User")}
	f.users.On("List", anyCtx, repositories.UserFilter{Search: "a@", Limit: 10}).Return(users, 1, nil)

	page, err := svc.ListUsers(bg, repositories.UserFilter{Search: "  a@ ", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Users, 1)
	assert.Equal(t, 10, page.Limit)
}

func TestCreateUser(t *testing.T) {
	t.Run("normalises email, hashes password and resolves role", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		qa := models.NewRole("QA", "")
		f.roles.On("GetByName", inTx, "QA").Return(qa, nil)
		f.users.On("Create", inTx, mock.AnythingOfType("*models.User")).Return(nil)

		user, err := svc.CreateUser(bg, CreateUserInput{
			Email:    " New.Person@Example.com ",
			Password: "pw-123",
			Role:     "QA",
		})
		require.NoError(t, err)
		assert.Equal(t, "new.person@example.com", user.Email)
		assert.Equal(t, "new.person", user.FullName)
		assert.Equal(t, "QA", user.Role)
		assert.Equal(t, &qa.ID, user.RoleID)
		assert.True(t, user.IsActive)
		assert.True(t, CheckPassword(user.PasswordHash, "pw-123"))
		assert.True(t, f.txMgr.last.committed)
	})

	t.Run("defaults to the User role and may start inactive", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		f.roles.On("GetByName", inTx, models.RoleUser).Return(models.NewRole(models.RoleUser, ""), nil)
		f.users.On("Create", inTx, mock.AnythingOfType("*models.User")).Return(nil)

		inactive := false
		user, err := svc.CreateUser(bg, CreateUserInput{Email: "x@example.com", FullName: "X", IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.False(t, user.IsActive)
		assert.False(t, user.HasPassword())
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		_, err := svc.CreateUser(bg, CreateUserInput{Email: "not-an-email"})
		assert.True(t, IsValidationError(err))
		assert.Equal(t, 0, f.txMgr.count)
	})

	t.Run("duplicate email rolls back", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		f.roles.On("GetByName", inTx, models.RoleUser).Return(models.NewRole(models.RoleUser, ""), nil)
		f.users.On("Create", inTx, mock.Anything).Return(fmt.Errorf("%w: user", repositories.ErrDuplicate))

		_, err := svc.CreateUser(bg, CreateUserInput{Email: "dup@example.com"})
		assert.True(t, IsConflictError(err))
		assert.Equal(t, "user with this email already exists", GetErrorMessage(err))
		assert.True(t, f.txMgr.last.rolledback)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("partial update with role change", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		user := models.NewUser("a@example.com", "Old Name", nil, "User")
		dev := models.NewRole("Developer", "")
		f.users.On("GetByID", inTx, user.ID).Return(user, nil)
		f.roles.On("GetByName", inTx, "Developer").Return(dev, nil)
		f.users.On("Update", inTx, user).Return(nil)

		name, role := "New Name", "Developer"
		updated, err := svc.UpdateUser(bg, user.ID, UpdateUserInput{FullName: &name, Role: &role})
		require.NoError(t, err)
		assert.Equal(t, "New Name", updated.FullName)
		assert.Equal(t, "a@example.com", updated.Email)
		assert.Equal(t, "Developer", updated.Role)
		assert.Equal(t, &dev.ID, updated.RoleID)
	})

	t.Run("unknown role", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		user := models.NewUser("a@example.com", "A", nil, "User")
		f.users.On("GetByID", inTx, user.ID).Return(user, nil)
		f.roles.On("GetByName", inTx, "Wizard").Return(nil, fmt.Errorf("%w: role", repositories.ErrNotFound))

		role := "Wizard"
		_, err := svc.UpdateUser(bg, user.ID, UpdateUserInput{Role: &role})
		assert.True(t, IsValidationError(err))
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newServicesFixture()
		svc := NewUserService(f.repos, f.txMgr, testLogger)

		id := uuid.New()
		f.users.On("GetByID", inTx, id).Return(nil, repositories.ErrNotFound)

		_, err := svc.UpdateUser(bg, id, UpdateUserInput{})
		assert.True(t, IsNotFoundError(err))
	})
}

func TestSetUserStatus(t *testing.T) {
	f := newServicesFixture()
	svc := NewUserService(f.repos, f.txMgr, testLogger)

	user := models.NewUser("a@example.com", "A", nil, "User")
	user.IsActive = false
	f.users.On("SetActive", anyCtx, user.ID, false).Return(nil)
	f.users.On("GetByID", anyCtx, user.ID).Return(user, nil)

	got, err := svc.SetUserStatus(bg, user.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	missing := uuid.New()
	f.users.On("SetActive", anyCtx, missing, true).Return(repositories.ErrNotFound)
	_, err = svc.SetUserStatus(bg, missing, true)
	assert.True(t, IsNotFoundError(err))
}

func TestDeleteUser(t *testing.T) {
	f := newServicesFixture()
	svc := NewUserService(f.repos, f.txMgr, testLogger)

	id := uuid.New()
	f.users.On("Delete", anyCtx, id).Return(nil).Once()
	assert.NoError(t, svc.DeleteUser(bg, id, uuid.NewString()))

	err := svc.DeleteUser(bg, id, id.String())
	assert.True(t, IsConflictError(err), "self-deletion is refused")

	f.users.On("Delete", anyCtx, id).Return(errors.New("boom")).Once()
	assert.True(t, IsInternalError(svc.DeleteUser(bg, id, "")))
}
