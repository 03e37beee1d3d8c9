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

// RoleRequest creates or updates a role
type RoleRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// GrantRequest grants a permission code, optionally until ExpiresAt
type GrantRequest struct {
	Code      string     `json:"code" validate:"required,max=200,permission_code"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ReplacePermissionsRequest sets the complete grant set of a role
type ReplacePermissionsRequest struct {
	Codes []string `json:"codes" validate:"dive,required,max=200"`
}

// RoleService defines the role operations the handler needs
type RoleService interface {
	ListRoles(ctx context.Context) ([]*models.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error)
	CreateRole(ctx context.Context, name, description string) (*models.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, name, description *string) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]*models.RolePermission, error)
	GrantRolePermission(ctx context.Context, roleID uuid.UUID, code string, expiresAt *time.Time) error
	RevokeRolePermission(ctx context.Context, roleID uuid.UUID, code string) error
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, codes []string) ([]*models.RolePermission, error)
}

// RoleHandler handles role and role-grant requests
type RoleHandler struct {
	roles  RoleService
	logger *zap.Logger
}

// NewRoleHandler creates a new RoleHandler
func NewRoleHandler(roles RoleService, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{
		roles:  roles,
		logger: logger,
	}
}

// HandleListRoles handles GET /api/roles
func (h *RoleHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, roles)
}

// HandleGetRole handles GET /api/roles/{id}
func (h *RoleHandler) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.roles.GetRole(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, role)
}

// HandleCreateRole handles POST /api/roles
func (h *RoleHandler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	if req.Name == nil {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{"name": "name is required"})
		return
	}

	var description string
	if req.Description != nil {
		description = *req.Description
	}

	role, err := h.roles.CreateRole(r.Context(), *req.Name, description)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, role)
}

// HandleUpdateRole handles PUT /api/roles/{id}
func (h *RoleHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	role, err := h.roles.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, role)
}

// HandleDeleteRole handles DELETE /api/roles/{id}
func (h *RoleHandler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleListRolePermissions handles GET /api/roles/{id}/permissions
func (h *RoleHandler) HandleListRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.roles.ListRolePermissions(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, grants)
}

// HandleGrantRolePermission handles POST /api/roles/{id}/permissions
func (h *RoleHandler) HandleGrantRolePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req GrantRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.roles.GrantRolePermission(r.Context(), id, req.Code, req.ExpiresAt); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{Message: "Permission granted"})
}

// HandleReplaceRolePermissions handles PUT /api/roles/{id}/permissions
func (h *RoleHandler) HandleReplaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req ReplacePermissionsRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	grants, err := h.roles.ReplaceRolePermissions(r.Context(), id, req.Codes)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, grants)
}

// HandleRevokeRolePermission handles DELETE /api/roles/{id}/permissions/{code}
func (h *RoleHandler) HandleRevokeRolePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.roles.RevokeRolePermission(r.Context(), id, chi.URLParam(r, "code")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}
