package user

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bekberov/go-user-service/internal/api"
	"github.com/bekberov/go-user-service/internal/types"
)

// Handler exposes the user CRUD and search endpoints.
type Handler struct {
	userService UserService
	logger      *slog.Logger
}

func NewHandler(userService UserService, logger *slog.Logger) *Handler {
	return &Handler{
		userService: userService,
		logger:      logger,
	}
}

// CreateUser godoc
// @Summary      Create user
// @Description  Validates and persists a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body types.CreateUserRequest true "User payload"
// @Success      201 {object} types.User
// @Failure      400 {object} map[string]interface{} "Validation failure"
// @Security     BearerAuth
// @Router       /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "CreateUser", trace.WithAttributes(
		semconvRoute("/users"),
	))
	defer span.End()

	var req types.CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.userService.Register(ctx, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// GetUser godoc
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} types.User
// @Failure      404 {object} map[string]interface{} "User not found"
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "GetUser")
	defer span.End()

	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	u, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("User with ID %s not found", userID))
			return
		}
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// ListUsers godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200 {array} types.User
// @Security     BearerAuth
// @Router       /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "ListUsers")
	defer span.End()

	users, err := h.userService.ListUsers(ctx)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// SearchUsers godoc
// @Summary      Search users by birth date range
// @Description  Returns users born within [from, to]; from must be strictly before to
// @Tags         users
// @Produce      json
// @Param        from query string true "Range start" format(date)
// @Param        to query string true "Range end" format(date)
// @Success      200 {array} types.User
// @Failure      400 {object} map[string]interface{} "Invalid range"
// @Security     BearerAuth
// @Router       /users/search [get]
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "SearchUsers")
	defer span.End()

	from, err := types.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid 'from' date, expected YYYY-MM-DD")
		return
	}
	to, err := types.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid 'to' date, expected YYYY-MM-DD")
		return
	}
	if !from.Time.Before(to.Time) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "'From' should be less than 'To'")
		return
	}

	users, err := h.userService.SearchByBirthDateRange(ctx, from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// UpdateUser godoc
// @Summary      Update user
// @Description  Partial update; fields absent from the body keep their stored values
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Param        request body types.UpdateUserParams true "Fields to update"
// @Success      200 {object} types.User
// @Failure      400 {object} map[string]interface{} "Validation failure"
// @Failure      404 {object} map[string]interface{} "User not found"
// @Security     BearerAuth
// @Router       /users/{id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "UpdateUser")
	defer span.End()

	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	var params types.UpdateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.userService.UpdateUser(ctx, userID, params)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Cannot update non-existent user!")
			return
		}
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

// DeleteUser godoc
// @Summary      Delete user
// @Description  Removes the user; deleting an absent user still succeeds
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} map[string]interface{}
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("UserHandler").Start(r.Context(), "DeleteUser")
	defer span.End()

	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted successfully",
	})
}

func (h *Handler) parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	userID, err := uuid.Parse(idStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	api.RespondError(w, r, h.logger, err)
}

func semconvRoute(route string) attribute.KeyValue {
	return attribute.String("http.route", route)
}
