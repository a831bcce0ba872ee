package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/bekberov/go-user-service/internal/api"
	"github.com/bekberov/go-user-service/internal/api/user"
	"github.com/bekberov/go-user-service/internal/types"
)

// Handler exposes the public registration and login endpoints.
type Handler struct {
	authService AuthService
	userService user.UserService
	logger      *slog.Logger
}

func NewHandler(authService AuthService, userService user.UserService, logger *slog.Logger) *Handler {
	return &Handler{
		authService: authService,
		userService: userService,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Validates the payload and creates the account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body types.CreateUserRequest true "Registration payload"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{} "Validation failure"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()

	var req types.CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.userService.Register(ctx, req)
	if err != nil {
		api.RespondError(w, r, h.logger, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User registered successfully",
		"user_id": created.ID.String(),
	})
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and returns a bearer access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse
// @Failure      401 {object} map[string]interface{} "Invalid credentials"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.ErrorContext(ctx, "Login failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
