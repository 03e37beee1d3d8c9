package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/middleware"
	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/repositories"
	"github.com/alchemy-tracker/backend/services"
	"github.com/alchemy-tracker/backend/utils"
)

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     string `json:"role" validate:"max=100"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// UpdateUserRequest represents a partial user update
type UpdateUserRequest struct {
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName      *string `json:"full_name,omitempty" validate:"omitempty,max=200"`
	Password      *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	Role          *string `json:"role,omitempty" validate:"omitempty,max=100"`
	ProfilePicURL *string `json:"profile_pic_url,omitempty" validate:"omitempty,url"`
}

// UpdateUserStatusRequest toggles a user's active flag
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// UserService defines the user operations the handler needs
type UserService interface {
	ListUsers(ctx context.Context, filter repositories.UserFilter) (*services.UserPage, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, input services.CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, input services.UpdateUserInput) (*models.User, error)
	SetUserStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID, actorID string) error
}

// UserHandler handles user administration requests
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleListUsers handles GET /api/users?q=&limit=&offset=
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.UserFilter{Search: query.Get("q")}

	var err error
	if filter.Limit, err = queryInt(query.Get("limit")); err != nil {
		_ = utils.WriteBadRequest(w, "limit must be an integer", nil)
		return
	}
	if filter.Offset, err = queryInt(query.Get("offset")); err != nil {
		_ = utils.WriteBadRequest(w, "offset must be an integer", nil)
		return
	}

	page, err := h.users.ListUsers(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, page)
}

// HandleGetUser handles GET /api/users/{id}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleCreateUser handles POST /api/users
func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.CreateUser(r.Context(), services.CreateUserInput{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user created",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("user_id", user.ID.String()))

	_ = utils.WriteCreated(w, user)
}

// HandleUpdateUser handles PUT /api/users/{id}
func (h *UserHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), id, services.UpdateUserInput{
		Email:         req.Email,
		FullName:      req.FullName,
		Password:      req.Password,
		Role:          req.Role,
		ProfilePicURL: req.ProfilePicURL,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleUpdateUserStatus handles PATCH /api/users/{id}/status
func (h *UserHandler) HandleUpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserStatusRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.SetUserStatus(r.Context(), id, *req.IsActive)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	status := "deactivated"
	if user.IsActive {
		status = "activated"
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{
		Data:    user,
		Message: "User " + status + " successfully",
	})
}

// HandleDeleteUser handles DELETE /api/users/{id}
func (h *UserHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var actorID string
	if identity := middleware.GetIdentityFromContext(r.Context()); identity != nil {
		actorID = identity.SubjectID
	}

	if err := h.users.DeleteUser(r.Context(), id, actorID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// parseID reads a UUID URL parameter, writing a 400 when it is malformed
func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid "+param+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
