package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
)

func TestUserPermissionOverrides(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	newService := func(f *servicesFixture) *PermissionService {
		svc := NewPermissionService(f.repos, testLogger)
		svc.now = func() time.Time { return now }
		return svc
	}

	t.Run("grant", func(t *testing.T) {
		f := newServicesFixture()
		svc := newService(f)

		user := models.NewUser("a@example.com", "A", nil, "User")
		perm := permission("reports.export")
		f.users.On("GetByID", anyCtx, user.ID).Return(user, nil)
		f.perms.On("GetByCode", anyCtx, "reports.export").Return(perm, nil)
		f.perms.On("GrantToUser", anyCtx, user.ID, perm.ID, (*time.Time)(nil)).Return(nil)

		require.NoError(t, svc.GrantUserPermission(bg, user.ID, "reports.export", nil))
		f.perms.AssertExpectations(t)
	})

	t.Run("grant to missing user", func(t *testing.T) {
		f := newServicesFixture()
		svc := newService(f)

		id := uuid.New()
		f.users.On("GetByID", anyCtx, id).Return(nil, repositories.ErrNotFound)

		err := svc.GrantUserPermission(bg, id, "reports.export", nil)
		assert.True(t, IsNotFoundError(err))
		f.perms.AssertNotCalled(t, "GrantToUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expiry at now is rejected", func(t *testing.T) {
		f := newServicesFixture()
		svc := newService(f)

		err := svc.GrantUserPermission(bg, uuid.New(), "reports.export", &now)
		assert.ErrorIs(t, err, ErrExpiryInPast)
	})

	t.Run("revoke and list", func(t *testing.T) {
		f := newServicesFixture()
		svc := newService(f)

		user := models.NewUser("a@example.com", "A", nil, "User")
		perm := permission("reports.export")
		f.perms.On("GetByCode", anyCtx, "reports.export").Return(perm, nil)
		f.perms.On("RevokeFromUser", anyCtx, user.ID, perm.ID).Return(nil)
		f.users.On("GetByID", anyCtx, user.ID).Return(user, nil)
		f.perms.On("ListForUser", anyCtx, user.ID).Return([]*models.UserPermission{}, nil)

		require.NoError(t, svc.RevokeUserPermission(bg, user.ID, "reports.export"))
		grants, err := svc.ListUserPermissions(bg, user.ID)
		require.NoError(t, err)
		assert.Empty(t, grants)
	})
}

func TestListPermissions(t *testing.T) {
	f := newServicesFixture()
	svc := NewPermissionService(f.repos, testLogger)

	f.perms.On("List", anyCtx).Return([]*models.Permission{permission("users.read")}, nil)
	perms, err := svc.ListPermissions(bg)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}
