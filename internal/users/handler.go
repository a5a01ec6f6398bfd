package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/response"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

// ProfileRequest is the JSON body for PUT /api/users/profile. Multipart forms carry the same
// fields plus an optional avatar file.
type ProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// PasswordRequest is the body for PUT /api/users/password.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// RoleRequest is the body for PUT /api/users/:id/role.
type RoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// BlockResponse is returned by block and unblock.
type BlockResponse struct {
	Message string            `json:"message"`
	User    models.UserPublic `json:"user"`
}

// Handler handles user endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a users handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// GetProfile handles GET /api/users/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), middleware.MustActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// UpdateProfile handles PUT /api/users/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var in ProfileInput
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if v, ok := c.GetPostForm("name"); ok {
			in.Name = &v
		}
		if v, ok := c.GetPostForm("email"); ok {
			in.Email = &v
		}
		fh, err := c.FormFile("avatar")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			response.Error(c, apperr.Wrap(apperr.KindValidation, "invalid avatar upload", err))
			return
		default:
			f, closer, err := storage.FromMultipart(fh)
			if err != nil {
				response.Error(c, err)
				return
			}
			defer closer.Close()
			in.Avatar = &f
		}
	} else {
		var req ProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, validation.Translate(err))
			return
		}
		in.Name, in.Email = req.Name, req.Email
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.MustActor(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// ChangePassword handles PUT /api/users/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), middleware.MustActor(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password updated")
}

// DeleteAccount handles DELETE /api/users/account.
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.svc.DeleteAccount(c.Request.Context(), middleware.MustActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "account deleted")
}

// Events handles GET /api/users/events.
func (h *Handler) Events(c *gin.Context) {
	out, err := h.svc.Events(c.Request.Context(), middleware.MustActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// List handles GET /api/users (admin only).
func (h *Handler) List(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context(), pagination.Parse(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// Get handles GET /api/users/:id (admin only).
func (h *Handler) Get(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// SetRole handles PUT /api/users/:id/role (admin only).
func (h *Handler) SetRole(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, validation.Translate(err))
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), middleware.MustActor(c), id, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Block handles PUT /api/users/:id/block (admin only).
func (h *Handler) Block(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	u, err := h.svc.Block(c.Request.Context(), middleware.MustActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BlockResponse{Message: "user blocked", User: u})
}

// Unblock handles PUT /api/users/:id/unblock (admin only).
func (h *Handler) Unblock(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	u, err := h.svc.Unblock(c.Request.Context(), middleware.MustActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BlockResponse{Message: "user unblocked", User: u})
}
