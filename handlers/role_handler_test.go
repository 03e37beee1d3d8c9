package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/services"
)

func TestHandleCreateRole(t *testing.T) {
	logger := zap.NewNop()

	t.Run("created", func(t *testing.T) {
		roles := new(MockRoleService)
		handler := NewRoleHandler(roles, logger)
		roles.On("CreateRole", mock.Anything, "Support", "").Return(models.NewRole("Support", ""), nil)

		w := httptest.NewRecorder()
		handler.HandleCreateRole(w, httptest.NewRequest(http.MethodPost, "/api/roles", strings.NewReader(`{"name":"Support"}`)))
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("name required", func(t *testing.T) {
		roles := new(MockRoleService)
		handler := NewRoleHandler(roles, logger)

		w := httptest.NewRecorder()
		handler.HandleCreateRole(w, httptest.NewRequest(http.MethodPost, "/api/roles", strings.NewReader(`{"description":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		roles.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleDeleteBuiltInRole(t *testing.T) {
	roles := new(MockRoleService)
	handler := NewRoleHandler(roles, zap.NewNop())

	id := uuid.New()
	roles.On("DeleteRole", mock.Anything, id).Return(services.ErrBuiltInRole)

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id.String()})
	w := httptest.NewRecorder()
	handler.HandleDeleteRole(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleGrantRolePermission(t *testing.T) {
	roles := new(MockRoleService)
	handler := NewRoleHandler(roles, zap.NewNop())

	id := uuid.New()
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	roles.On("GrantRolePermission", mock.Anything, id, "bugs.create", mock.MatchedBy(func(at *time.Time) bool {
		return at != nil && at.Equal(expires)
	})).Return(nil)

	body := `{"code":"bugs.create","expires_at":"2030-01-02T03:04:05Z"}`
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), map[string]string{"id": id.String()})
	w := httptest.NewRecorder()
	handler.HandleGrantRolePermission(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	roles.AssertExpectations(t)
}

func TestHandleReplaceRolePermissions(t *testing.T) {
	roles := new(MockRoleService)
	handler := NewRoleHandler(roles, zap.NewNop())

	id := uuid.New()
	unknown := services.NewDomainError(services.ErrorTypeValidation, "unknown permission codes", nil).
		WithDetail("codes", []string{"zz.top"})
	roles.On("ReplaceRolePermissions", mock.Anything, id, []string{"users.read", "zz.top"}).Return(nil, unknown)

	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"codes":["users.read","zz.top"]}`)), map[string]string{"id": id.String()})
	w := httptest.NewRecorder()
	handler.HandleReplaceRolePermissions(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "zz.top")
}

func TestHandleRevokeRolePermission(t *testing.T) {
	roles := new(MockRoleService)
	handler := NewRoleHandler(roles, zap.NewNop())

	id := uuid.New()
	roles.On("RevokeRolePermission", mock.Anything, id, "users.read").Return(nil)

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id.String(), "code": "users.read"})
	w := httptest.NewRecorder()
	handler.HandleRevokeRolePermission(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
