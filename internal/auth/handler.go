package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/password"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/validation"
)

// Store is the user persistence the auth handlers need.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, name, email, passwordHash string, role models.Role) (*models.User, error)
}

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body for POST /api/auth/refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is the auth response with JWTs.
type TokenResponse struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refresh_token"`
	User         models.UserPublic `json:"user"`
}

var (
	errBadCredentials = apperr.Authentication("invalid email or password")
	errBlocked        = apperr.Forbidden("account is blocked")
	errEmailTaken     = apperr.Conflict("email already registered")
)

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{store: store, jwt: jwt, logger: logger}
}

func (h *Handler) issue(user *models.User) (TokenResponse, error) {
	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, err := h.jwt.GenerateRefresh(user.ID, user.Email, string(user.Role))
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{Token: token, RefreshToken: refresh, User: user.ToPublic()}, nil
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetByEmail(ctx, req.Email); err == nil {
		response.Error(c, errEmailTaken)
		return
	} else if !errors.Is(err, ErrUserNotFound) {
		response.Error(c, err)
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.store.Create(ctx, req.Name, req.Email, hash, models.RoleUser)
	if errors.Is(err, ErrEmailTaken) {
		response.Error(c, errEmailTaken)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	out, err := h.issue(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	response.Created(c, out)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}

	user, err := h.store.GetByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, ErrUserNotFound) {
		response.Error(c, errBadCredentials)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if !password.Check(req.Password, user.Password) {
		response.Error(c, errBadCredentials)
		return
	}
	if user.IsBlocked {
		response.Error(c, errBlocked)
		return
	}

	out, err := h.issue(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	actor := middleware.MustActor(c)
	user, err := h.store.GetByID(c.Request.Context(), actor.ID)
	if errors.Is(err, ErrUserNotFound) {
		response.Error(c, apperr.NotFound("user not found"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user.ToPublic())
}

// Refresh handles POST /api/auth/refresh-token. The new tokens carry the user's current role.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	claims, err := h.jwt.ValidateRefresh(req.RefreshToken)
	if err != nil {
		response.Error(c, apperr.Authentication("invalid or expired refresh token"))
		return
	}
	user, err := h.store.GetByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		response.Error(c, apperr.Authentication("invalid or expired refresh token"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	if user.IsBlocked {
		response.Error(c, errBlocked)
		return
	}
	out, err := h.issue(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Logout handles POST /api/auth/logout. Tokens are stateless; the client discards them.
func (h *Handler) Logout(c *gin.Context) {
	response.Message(c, "logged out")
}
