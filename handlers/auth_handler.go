package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/middleware"
	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/services"
	"github.com/alchemy-tracker/backend/utils"
)

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// MeResponse describes the verified caller
type MeResponse struct {
	SubjectID string        `json:"subject_id"`
	Email     string        `json:"email,omitempty"`
	Role      string        `json:"role"`
	Origin    models.Origin `json:"origin"`
}

// PermissionCheckResponse is the body of GET /api/permissions/check
type PermissionCheckResponse struct {
	Code    string `json:"code"`
	Allowed bool   `json:"allowed"`
}

// LoginService exchanges credentials for a signed token
type LoginService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
}

// AuthHandler serves login and caller introspection
type AuthHandler struct {
	auth     LoginService
	resolver middleware.PermissionResolver
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth LoginService, resolver middleware.PermissionResolver, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		resolver: resolver,
		logger:   logger,
	}
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleMe handles GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if !identity.Authenticated() {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	role, ok := h.resolver.CurrentRole(r.Context(), identity)
	if !ok {
		role = "Unknown"
	}

	_ = utils.WriteOK(w, MeResponse{
		SubjectID: identity.SubjectID,
		Email:     identity.Email,
		Role:      role,
		Origin:    identity.Origin,
	})
}

// HandleCheckPermission handles GET /api/permissions/check?code=module.action
func (h *AuthHandler) HandleCheckPermission(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if !identity.Authenticated() {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if _, _, err := models.ParsePermissionCode(code); err != nil {
		_ = utils.WriteBadRequest(w, "code must be of the form <module>.<action>", nil)
		return
	}

	allowed := h.resolver.HasPermission(r.Context(), identity, code)
	h.logger.Debug("permission checked",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("subject_id", identity.SubjectID),
		zap.String("code", code),
		zap.Bool("allowed", allowed))

	_ = utils.WriteOK(w, PermissionCheckResponse{Code: code, Allowed: allowed})
}
