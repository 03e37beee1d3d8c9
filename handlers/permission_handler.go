package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/utils"
)

// PermissionService defines the catalog and user-override operations
type PermissionService interface {
	ListPermissions(ctx context.Context) ([]*models.Permission, error)
	ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]*models.UserPermission, error)
	GrantUserPermission(ctx context.Context, userID uuid.UUID, code string, expiresAt *time.Time) error
	RevokeUserPermission(ctx context.Context, userID uuid.UUID, code string) error
}

// PermissionHandler serves the permission catalog and direct user grants
type PermissionHandler struct {
	permissions PermissionService
	logger      *zap.Logger
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(permissions PermissionService, logger *zap.Logger) *PermissionHandler {
	return &PermissionHandler{
		permissions: permissions,
		logger:      logger,
	}
}

// HandleListPermissions handles GET /api/permissions
func (h *PermissionHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permissions.ListPermissions(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, perms)
}

// HandleListUserPermissions handles GET /api/users/{id}/permissions
func (h *PermissionHandler) HandleListUserPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.permissions.ListUserPermissions(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, grants)
}

// HandleGrantUserPermission handles POST /api/users/{id}/permissions
func (h *PermissionHandler) HandleGrantUserPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req GrantRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.permissions.GrantUserPermission(r.Context(), id, req.Code, req.ExpiresAt); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{Message: "Permission granted"})
}

// HandleRevokeUserPermission handles DELETE /api/users/{id}/permissions/{code}
func (h *PermissionHandler) HandleRevokeUserPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.permissions.RevokeUserPermission(r.Context(), id, chi.URLParam(r, "code")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}
